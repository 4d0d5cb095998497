package convert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/money"
	"github.com/acoyfellow/tax-agent/internal/provider/wire"
	"github.com/acoyfellow/tax-agent/internal/testutil"
)

func TestToCreateRequest_Single(t *testing.T) {
	t.Parallel()

	req := testutil.ValidRequest(2025)
	got := ToCreateRequest(req)

	require.Equal(t, "2025", got.SubmissionManifest.TaxYear)
	require.True(t, got.SubmissionManifest.IsFederalFiling)
	require.False(t, got.SubmissionManifest.IsStateFiling)

	b := got.ReturnHeader.Business
	require.Equal(t, "Acme Widgets LLC", b.BusinessNm)
	require.True(t, b.IsEIN)
	require.Equal(t, "27-1234567", b.EINorSSN)
	require.Equal(t, "NONEAPPLY", b.KindOfEmployer)
	require.Equal(t, "REGULAR941", b.KindOfPayer)
	require.Equal(t, "94105", b.USAddress.ZipCd)

	require.Len(t, got.ReturnData, 1)
	rd := got.ReturnData[0]
	require.Equal(t, "1", rd.SequenceID)
	require.Equal(t, "SSN", rd.Recipient.TINType)
	require.Equal(t, "412789654", rd.Recipient.TIN)
	require.Equal(t, "Jordan Rivera", rd.Recipient.FirstPayeeNm)
	require.Equal(t, "5000.00", rd.NECFormData.B1NEC)
	require.Empty(t, rd.NECFormData.B4FedTaxWH)
	require.Empty(t, rd.NECFormData.States)
}

func TestToReturnData_AmountsRoundedOnce(t *testing.T) {
	t.Parallel()

	req := testutil.ValidRequest(2025)
	req.Compensation = money.MustParse("1234.565")
	req.HasFederalWithholding = true
	req.FederalWithheld = money.MustParse("100.1")

	rd := ToReturnData(3, req)
	if rd.NECFormData.B1NEC != "1234.57" {
		t.Fatalf("B1NEC = %q, want 1234.57 (half up)", rd.NECFormData.B1NEC)
	}
	if rd.NECFormData.B4FedTaxWH != "100.10" {
		t.Fatalf("B4FedTaxWH = %q", rd.NECFormData.B4FedTaxWH)
	}
	if rd.SequenceID != "3" {
		t.Fatalf("SequenceID = %q", rd.SequenceID)
	}
}

func TestToReturnData_StateBlock(t *testing.T) {
	t.Parallel()

	req := testutil.ValidRequest(2025)
	req.StateFiling = true
	req.StateCode = "CA"

	rd := ToReturnData(1, req)
	require.Len(t, rd.NECFormData.States, 1)
	st := rd.NECFormData.States[0]
	require.Equal(t, "CA", st.StateCd)
	// state income falls back to compensation
	require.Equal(t, "5000.00", st.StateIncome)
	require.Empty(t, st.StateWH)

	req.StateIncome = money.MustParse("4000")
	req.StateWithheld = money.MustParse("12.5")
	st = ToReturnData(1, req).NECFormData.States[0]
	require.Equal(t, "4000.00", st.StateIncome)
	require.Equal(t, "12.50", st.StateWH)
}

func TestToCreateRequest_MatchesBatchOfOne(t *testing.T) {
	t.Parallel()

	req := testutil.ValidRequest(2025)
	req.StateFiling = true
	batch, err := ToBatchCreateRequest([]model.FilingRequest{req})
	require.NoError(t, err)
	require.Equal(t, batch, ToCreateRequest(req))
}

func TestToBatchCreateRequest(t *testing.T) {
	t.Parallel()

	a := testutil.ValidRequest(2025)
	b := testutil.ValidRequest(2025)
	b.Recipient.Name = "Sam Lee"
	b.Recipient.TIN = "523456789"
	b.StateFiling = true
	b.StateCode = "TX"

	got, err := ToBatchCreateRequest(nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrInvalidArgument))
	require.Empty(t, got.ReturnData)

	got, err = ToBatchCreateRequest([]model.FilingRequest{a, b})
	require.NoError(t, err)
	require.Len(t, got.ReturnData, 2)
	require.Equal(t, "1", got.ReturnData[0].SequenceID)
	require.Equal(t, "2", got.ReturnData[1].SequenceID)
	require.Equal(t, "Sam Lee", got.ReturnData[1].Recipient.FirstPayeeNm)
	require.True(t, got.SubmissionManifest.IsStateFiling, "any member requesting state filing sets the flag")
	require.Empty(t, got.ReturnData[0].NECFormData.States)
}

func TestToBatchCreateRequest_PayerMismatch(t *testing.T) {
	t.Parallel()

	a := testutil.ValidRequest(2025)
	b := testutil.ValidRequest(2025)
	b.Payer.TIN = "98-7654321"

	_, err := ToBatchCreateRequest([]model.FilingRequest{a, b})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestFromRecords(t *testing.T) {
	t.Parallel()

	in := wire.Records{
		SuccessRecords: []wire.RecordStatus{{SequenceID: "1", RecordID: "r1", RecordStatus: "Created"}},
		ErrorRecords: []wire.RecordStatus{{
			SequenceID: "2", RecordID: "r2", RecordStatus: "Rejected",
			Errors: []wire.Error{{ID: "E1", Name: "TIN", Message: "mismatch"}},
		}},
	}
	got := FromRecords(in)
	require.Len(t, got, 2)
	require.Equal(t, "r1", got[0].RecordID)
	require.Equal(t, "Created", got[0].Status)
	require.Equal(t, "r2", got[1].RecordID)
	require.Len(t, got[1].Errors, 1)
	require.Equal(t, "E1", got[1].Errors[0].ID)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	got := ErrorMessages([]wire.Error{
		{Name: "TIN", Message: "invalid"},
		{Message: "only message"},
		{Name: "OnlyName"},
		{ID: "x"},
	})
	require.Equal(t, "TIN: invalid; only message; OnlyName", got)
}
