package dto

// ValidateCSVRequest checks the header row of one uploaded dataset.
type ValidateCSVRequest struct {
	Type string `form:"type" json:"type" validate:"required,oneof=students courses rooms"`
	Data []byte `json:"-"`
}

// ValidateCSVResponse keeps the legacy {valid, errors} contract.
type ValidateCSVResponse struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Headers []string `json:"headers,omitempty"`
}
