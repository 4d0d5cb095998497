package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/repository"
)

// MemSubmissions is an in-memory SubmissionRepository.
type MemSubmissions struct {
	mu     sync.Mutex
	rows   map[string]model.Submission
	Writes int   // successful mutating calls
	Err    error // returned by every call when set
}

var _ repository.SubmissionRepository = (*MemSubmissions)(nil)

// NewMemSubmissions returns an empty store.
func NewMemSubmissions() *MemSubmissions {
	return &MemSubmissions{rows: map[string]model.Submission{}}
}

func (m *MemSubmissions) InsertIfAbsent(_ context.Context, s model.Submission) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.rows[s.ID]; ok {
		return false, nil
	}
	m.rows[s.ID] = s
	m.Writes++
	return true, nil
}

func (m *MemSubmissions) UpsertStatus(_ context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time) (model.SubmissionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	prev := m.rows[id].Status
	m.write(id, formType, status, records, at)
	return prev, nil
}

func (m *MemSubmissions) AdvanceStatus(_ context.Context, id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time) (model.SubmissionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if cur, ok := m.rows[id]; ok && !cur.Status.Precedes(status) {
		return cur.Status, nil
	}
	m.write(id, formType, status, records, at)
	return status, nil
}

func (m *MemSubmissions) write(id, formType string, status model.SubmissionStatus, records json.RawMessage, at time.Time) {
	cur, ok := m.rows[id]
	if !ok {
		cur = model.Submission{ID: id, FormType: formType, CreatedAt: at}
	}
	cur.Status = status
	cur.UpdatedAt = at
	if records != nil {
		cur.Records = append(json.RawMessage(nil), records...)
	}
	m.rows[id] = cur
	m.Writes++
}

func (m *MemSubmissions) Get(_ context.Context, id string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &s, nil
}

func (m *MemSubmissions) List(_ context.Context, limit int) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.Submission, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored rows.
func (m *MemSubmissions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
