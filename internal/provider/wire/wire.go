// Package wire holds the filing provider's JSON request and response shapes.
// Monetary fields are decimal strings with two fractional digits.
package wire

// Envelope is the status block every provider response carries. A 2xx HTTP
// status does not imply success; StatusCode must be checked too.
type Envelope struct {
	StatusCode    int     `json:"StatusCode"`
	StatusName    string  `json:"StatusName"`
	StatusMessage string  `json:"StatusMessage"`
	Errors        []Error `json:"Errors"`
}

// Head exposes the envelope of any response type that embeds it.
func (e *Envelope) Head() *Envelope { return e }

// Error is one provider error entry.
type Error struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Message string `json:"Message"`
}

// TokenResponse is returned by the credential exchange.
type TokenResponse struct {
	StatusCode    int     `json:"StatusCode"`
	StatusName    string  `json:"StatusName"`
	StatusMessage string  `json:"StatusMessage"`
	AccessToken   string  `json:"AccessToken"`
	TokenType     string  `json:"TokenType"`
	ExpiresIn     int     `json:"ExpiresIn"` // seconds
	Errors        []Error `json:"Errors"`
}

// CreateRequest creates a 1099-NEC submission with one or more returns.
type CreateRequest struct {
	SubmissionManifest SubmissionManifest `json:"SubmissionManifest"`
	ReturnHeader       ReturnHeader       `json:"ReturnHeader"`
	ReturnData         []ReturnData       `json:"ReturnData"`
}

// SubmissionManifest carries filing-scope flags.
type SubmissionManifest struct {
	TaxYear         string `json:"TaxYear"`
	IsFederalFiling bool   `json:"IsFederalFiling"`
	IsStateFiling   bool   `json:"IsStateFiling"`
	IsPostal        bool   `json:"IsPostal"`
	IsOnlineAccess  bool   `json:"IsOnlineAccess"`
}

// ReturnHeader wraps the payer block.
type ReturnHeader struct {
	Business Business `json:"Business"`
}

// Business is the payer.
type Business struct {
	BusinessNm     string    `json:"BusinessNm"`
	TradeNm        string    `json:"TradeNm,omitempty"`
	IsEIN          bool      `json:"IsEIN"`
	EINorSSN       string    `json:"EINorSSN"`
	Email          string    `json:"Email,omitempty"`
	Phone          string    `json:"Phone,omitempty"`
	BusinessType   string    `json:"BusinessType,omitempty"`
	KindOfEmployer string    `json:"KindOfEmployer"`
	KindOfPayer    string    `json:"KindOfPayer"`
	IsForeign      bool      `json:"IsForeign"`
	USAddress      USAddress `json:"USAddress"`
}

// USAddress is a domestic address.
type USAddress struct {
	Address1 string `json:"Address1"`
	Address2 string `json:"Address2,omitempty"`
	City     string `json:"City"`
	State    string `json:"State"`
	ZipCd    string `json:"ZipCd"`
}

// ReturnData is one recipient and its form data.
type ReturnData struct {
	SequenceID  string      `json:"SequenceId"`
	Recipient   Recipient   `json:"Recipient"`
	NECFormData NECFormData `json:"NECFormData"`
}

// Recipient is the payee.
type Recipient struct {
	TINType       string    `json:"TINType"`
	TIN           string    `json:"TIN"`
	FirstPayeeNm  string    `json:"FirstPayeeNm"`
	SecondPayeeNm string    `json:"SecondPayeeNm,omitempty"`
	IsForeign     bool      `json:"IsForeign"`
	Email         string    `json:"Email,omitempty"`
	Phone         string    `json:"Phone,omitempty"`
	USAddress     USAddress `json:"USAddress"`
}

// NECFormData holds the box values.
type NECFormData struct {
	B1NEC      string      `json:"B1NEC"`
	B4FedTaxWH string      `json:"B4FedTaxWH,omitempty"`
	IsFATCA    bool        `json:"IsFATCA"`
	States     []StateData `json:"States,omitempty"`
}

// StateData is a state filing block.
type StateData struct {
	StateCd     string `json:"StateCd"`
	StateWH     string `json:"StateWH,omitempty"`
	StateIncome string `json:"StateIncome"`
}

// RecordStatus is a per-record result.
type RecordStatus struct {
	SequenceID   string  `json:"SequenceId"`
	RecordID     string  `json:"RecordId"`
	RecordStatus string  `json:"RecordStatus"`
	StatusTs     string  `json:"StatusTs,omitempty"`
	Errors       []Error `json:"Errors,omitempty"`
}

// Records splits per-record results.
type Records struct {
	SuccessRecords []RecordStatus `json:"SuccessRecords"`
	ErrorRecords   []RecordStatus `json:"ErrorRecords"`
}

// CreateResponse is returned by create.
type CreateResponse struct {
	Envelope
	SubmissionID    string  `json:"SubmissionId"`
	BusinessID      string  `json:"BusinessId"`
	Form1099Records Records `json:"Form1099Records"`
}

// TransmitRequest transmits a created submission.
type TransmitRequest struct {
	SubmissionID string   `json:"SubmissionId"`
	RecordIDs    []string `json:"RecordIds,omitempty"`
}

// TransmitResponse is returned by transmit.
type TransmitResponse struct {
	Envelope
	SubmissionID    string  `json:"SubmissionId"`
	Form1099Records Records `json:"Form1099Records"`
}

// StatusResponse is returned by status.
type StatusResponse struct {
	Envelope
	SubmissionID    string         `json:"SubmissionId"`
	FormType        string         `json:"FormType"`
	SubmissionState string         `json:"SubmissionStatus"`
	Form1099Records []RecordStatus `json:"Form1099Records"`
}
