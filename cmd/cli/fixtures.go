package main

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/acoyfellow/tax-agent/internal/model"
)

// fixture is either one request at the top level or a list under "requests".
// JSON input parses as YAML.
type fixture struct {
	Requests []model.FilingRequest `yaml:"requests"`
}

func parseFixture(data []byte) ([]model.FilingRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("fixture is empty")
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Requests) > 0 {
		return f.Requests, nil
	}

	var one model.FilingRequest
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return []model.FilingRequest{one}, nil
}
