package review

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/redact"
)

const (
	maxMessageLen     = 500
	placeholderField  = "semantic_review"
	placeholderMsg    = "Reviewer flagged a concern without details."
	maxIssuesAccepted = 50
)

var errNoObject = errors.New("no balanced JSON object in reviewer response")

type parsed struct {
	issues  []model.ValidationIssue
	summary string
}

// parseResponse treats the reviewer text as untrusted structured input. Every
// anomaly is defaulted rather than rejected; only a missing or undecodable
// object is reported as an error.
func parseResponse(text string) (parsed, error) {
	obj, ok := outermostObject(stripFences(text))
	if !ok {
		return parsed{}, errNoObject
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return parsed{}, err
	}

	var out parsed
	if s, ok := raw["summary"].(string); ok {
		out.summary = clean(s)
	}

	list, _ := raw["issues"].([]any)
	for _, it := range list {
		if len(out.issues) == maxIssuesAccepted {
			break
		}
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out.issues = append(out.issues, issueFrom(m))
	}
	return out, nil
}

func issueFrom(m map[string]any) model.ValidationIssue {
	field, _ := m["field"].(string)
	field = clean(field)
	if field == "" {
		field = placeholderField
	}
	msg, _ := m["message"].(string)
	msg = clean(msg)
	if msg == "" {
		msg = placeholderMsg
	}
	return model.ValidationIssue{Field: field, Message: msg, Severity: severityFrom(m["severity"])}
}

// severityFrom never yields error: the reviewer may advise but not block.
func severityFrom(v any) model.Severity {
	s, _ := v.(string)
	if model.Severity(strings.ToLower(strings.TrimSpace(s))) == model.SeverityInfo {
		return model.SeverityInfo
	}
	return model.SeverityWarning
}

func clean(s string) string {
	s = strings.TrimSpace(redact.Scrub(s))
	if r := []rune(s); len(r) > maxMessageLen {
		s = string(r[:maxMessageLen])
	}
	return s
}

// stripFences removes a ``` fence (with optional language tag) that opens
// before the first brace. Fences inside the object are left alone.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	if brace := strings.IndexByte(s, '{'); brace >= 0 && brace < start {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// outermostObject returns the first balanced {...} span, honouring JSON
// string literals so braces inside messages do not count.
func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
