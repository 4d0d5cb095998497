// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/money"
)

// ValidRequest returns a structurally valid request for taxYear: EIN payer
// 27-1234567, SSN recipient 412789654, 5000.00 compensation, no withholding,
// no state filing.
func ValidRequest(taxYear int) model.FilingRequest {
	return model.FilingRequest{
		Payer: model.PartyIdentity{
			Name:    "Acme Widgets LLC",
			TIN:     "27-1234567",
			TINType: model.TINTypeEIN,
			Address: model.Address{Line1: "100 Market St", City: "San Francisco", State: "CA", ZIP: "94105"},
			Phone:   "(415) 555-0100",
			Email:   "ap@acme.example",
		},
		Recipient: model.PartyIdentity{
			Name:    "Jordan Rivera",
			TIN:     "412789654",
			TINType: model.TINTypeSSN,
			Address: model.Address{Line1: "22 Elm Ave", City: "Austin", State: "TX", ZIP: "78701-1234"},
		},
		Compensation: money.MustParse("5000.00"),
		TaxYear:      taxYear,
	}.WithDefaults()
}
