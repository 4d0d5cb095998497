// Package convert maps domain filing requests to the provider wire format
// and provider results back to domain values.
//
// Amounts are rendered to two-digit decimal strings here and nowhere else.
package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
)

// --- domain -> wire ---

// ToCreateRequest converts a single filing request.
func ToCreateRequest(req model.FilingRequest) wire.CreateRequest {
	return createRequest(req.WithDefaults(), req.StateFiling, []wire.ReturnData{ToReturnData(1, req)})
}

// ToBatchCreateRequest converts requests that share one payer into a single
// submission. The first request's payer, tax year and classification codes are
// authoritative; state filing is requested if any member requests it.
func ToBatchCreateRequest(reqs []model.FilingRequest) (wire.CreateRequest, error) {
	if len(reqs) == 0 {
		return wire.CreateRequest{}, fmt.Errorf("empty batch: %w", errs.ErrInvalidArgument)
	}
	head := reqs[0].WithDefaults()

	stateFiling := false
	data := make([]wire.ReturnData, 0, len(reqs))
	for i, r := range reqs {
		if i > 0 && strings.TrimSpace(r.Payer.TIN) != strings.TrimSpace(head.Payer.TIN) {
			return wire.CreateRequest{}, fmt.Errorf("batch item[%d]: payer differs from item[0]: %w", i, errs.ErrInvalidArgument)
		}
		stateFiling = stateFiling || r.StateFiling
		data = append(data, ToReturnData(i+1, r))
	}

	return createRequest(head, stateFiling, data), nil
}

func createRequest(head model.FilingRequest, stateFiling bool, data []wire.ReturnData) wire.CreateRequest {
	return wire.CreateRequest{
		SubmissionManifest: wire.SubmissionManifest{
			TaxYear:         strconv.Itoa(head.TaxYear),
			IsFederalFiling: true,
			IsStateFiling:   stateFiling,
		},
		ReturnHeader: wire.ReturnHeader{Business: ToBusiness(head)},
		ReturnData:   data,
	}
}

// ToBusiness converts the payer block.
func ToBusiness(req model.FilingRequest) wire.Business {
	p := req.Payer
	return wire.Business{
		BusinessNm:     p.Name,
		TradeNm:        p.SecondName,
		IsEIN:          p.TINType == model.TINTypeEIN,
		EINorSSN:       p.TIN,
		Email:          p.Email,
		Phone:          p.Phone,
		BusinessType:   p.BusinessType,
		KindOfEmployer: req.KindOfEmployer,
		KindOfPayer:    req.KindOfPayer,
		USAddress:      ToUSAddress(p.Address),
	}
}

// ToUSAddress converts an address.
func ToUSAddress(a model.Address) wire.USAddress {
	return wire.USAddress{
		Address1: a.Line1,
		Address2: a.Line2,
		City:     a.City,
		State:    a.State,
		ZipCd:    a.ZIP,
	}
}

// ToReturnData converts one recipient and its amounts.
func ToReturnData(seq int, req model.FilingRequest) wire.ReturnData {
	r := req.Recipient
	form := wire.NECFormData{B1NEC: req.Compensation.WireString()}
	if req.HasFederalWithholding {
		form.B4FedTaxWH = req.FederalWithheld.WireString()
	}
	if req.StateFiling {
		income := req.StateIncome
		if !income.IsSet() {
			income = req.Compensation
		}
		sd := wire.StateData{StateCd: req.StateCode, StateIncome: income.WireString()}
		if req.StateWithheld.IsSet() {
			sd.StateWH = req.StateWithheld.WireString()
		}
		form.States = []wire.StateData{sd}
	}

	return wire.ReturnData{
		SequenceID: strconv.Itoa(seq),
		Recipient: wire.Recipient{
			TINType:       string(r.TINType),
			TIN:           r.TIN,
			FirstPayeeNm:  r.Name,
			SecondPayeeNm: r.SecondName,
			Email:         r.Email,
			Phone:         r.Phone,
			USAddress:     ToUSAddress(r.Address),
		},
		NECFormData: form,
	}
}

// --- wire -> domain ---

// FromRecordStatus converts one provider record result.
func FromRecordStatus(in wire.RecordStatus) model.RecordOutcome {
	out := model.RecordOutcome{
		RecordID:   in.RecordID,
		SequenceID: in.SequenceID,
		Status:     in.RecordStatus,
		StatusTime: in.StatusTs,
	}
	for _, e := range in.Errors {
		out.Errors = append(out.Errors, model.RecordError{ID: e.ID, Name: e.Name, Message: e.Message})
	}
	return out
}

// FromRecordStatuses converts a list of provider record results.
func FromRecordStatuses(in []wire.RecordStatus) []model.RecordOutcome {
	out := make([]model.RecordOutcome, 0, len(in))
	for _, r := range in {
		out = append(out, FromRecordStatus(r))
	}
	return out
}

// FromRecords flattens success and error records, success first.
func FromRecords(in wire.Records) []model.RecordOutcome {
	all := make([]wire.RecordStatus, 0, len(in.SuccessRecords)+len(in.ErrorRecords))
	all = append(all, in.SuccessRecords...)
	all = append(all, in.ErrorRecords...)
	return FromRecordStatuses(all)
}

// ErrorMessages joins provider error entries into one line.
func ErrorMessages(in []wire.Error) string {
	parts := make([]string, 0, len(in))
	for _, e := range in {
		switch {
		case e.Name != "" && e.Message != "":
			parts = append(parts, e.Name+": "+e.Message)
		case e.Message != "":
			parts = append(parts, e.Message)
		case e.Name != "":
			parts = append(parts, e.Name)
		}
	}
	return strings.Join(parts, "; ")
}
