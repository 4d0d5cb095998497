package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/acoyfellow/tax-agent/internal/convert"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
)

const (
	pathCreate   = "/Form1099NEC/Create"
	pathTransmit = "/Form1099NEC/Transmit"
	pathStatus   = "/Form1099NEC/Status"
)

// Filer is the filing surface used by the service layer.
type Filer interface {
	CreateFiling(ctx context.Context, req model.FilingRequest) (model.Submission, error)
	CreateBatch(ctx context.Context, reqs []model.FilingRequest) (model.Submission, error)
	Transmit(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
	GetStatus(ctx context.Context, submissionID string) (StatusReport, error)
}

var _ Filer = (*Client)(nil)

// StatusReport is the provider's current view of a submission.
type StatusReport struct {
	SubmissionID  string
	FormType      string
	ProviderState string // provider's own submission status label
	Status        model.SubmissionStatus
	Records       []model.RecordOutcome
}

// CreateFiling creates a submission holding one return.
func (c *Client) CreateFiling(ctx context.Context, req model.FilingRequest) (model.Submission, error) {
	return c.create(ctx, "create", convert.ToCreateRequest(req))
}

// CreateBatch creates one submission holding every request. All requests
// must share the first request's payer.
func (c *Client) CreateBatch(ctx context.Context, reqs []model.FilingRequest) (model.Submission, error) {
	in, err := convert.ToBatchCreateRequest(reqs)
	if err != nil {
		return model.Submission{}, &Error{Kind: KindBusiness, Op: "batch", Err: err}
	}
	return c.create(ctx, "batch", in)
}

func (c *Client) create(ctx context.Context, op string, in wire.CreateRequest) (model.Submission, error) {
	var out wire.CreateResponse
	if err := c.do(ctx, op, http.MethodPost, pathCreate, nil, in, &out); err != nil {
		return model.Submission{}, err
	}
	id := strings.TrimSpace(out.SubmissionID)
	if id == "" {
		return model.Submission{}, &Error{
			Kind:         KindBusiness,
			Op:           op,
			ProviderCode: out.StatusCode,
			Message:      "response carries no submission id: " + envelopeMessage(out.Envelope),
		}
	}
	return model.Submission{
		ID:       id,
		FormType: model.FormType1099NEC,
		Status:   model.StatusCreated,
		Records:  rawRecords(convert.FromRecords(out.Form1099Records)),
	}, nil
}

// Transmit submits a created submission to the IRS. Success means the
// provider accepted the transmit, not that the IRS accepted the returns.
func (c *Client) Transmit(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	var out wire.TransmitResponse
	in := wire.TransmitRequest{SubmissionID: submissionID}
	if err := c.do(ctx, "transmit", http.MethodPost, pathTransmit, nil, in, &out); err != nil {
		return "", err
	}
	return model.StatusTransmitted, nil
}

// GetStatus fetches per-record outcomes and derives the submission status.
func (c *Client) GetStatus(ctx context.Context, submissionID string) (StatusReport, error) {
	var out wire.StatusResponse
	q := url.Values{"SubmissionId": []string{submissionID}}
	if err := c.do(ctx, "status", http.MethodGet, pathStatus, q, nil, &out); err != nil {
		return StatusReport{}, err
	}
	recs := convert.FromRecordStatuses(out.Form1099Records)
	id := out.SubmissionID
	if id == "" {
		id = submissionID
	}
	st := model.DeriveStatus(recs)
	if st == model.StatusTransmitted && strings.EqualFold(out.SubmissionState, string(model.StatusCreated)) {
		st = model.StatusCreated
	}
	return StatusReport{
		SubmissionID:  id,
		FormType:      out.FormType,
		ProviderState: out.SubmissionState,
		Status:        st,
		Records:       recs,
	}, nil
}

func rawRecords(recs []model.RecordOutcome) json.RawMessage {
	if len(recs) == 0 {
		return nil
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return nil
	}
	return b
}
