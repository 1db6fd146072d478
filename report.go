package tsaclient

import (
	"time"
)

// Result describes a timestamp obtained from the TSA.
type Result struct {
	// Token is the DER CMS ContentInfo returned by the TSA.
	Token          []byte          `json:"-"`
	GenerationTime time.Time       `json:"generationTime"`
	TSAName        string          `json:"tsaName,omitempty"`
	HashAlgorithm  DigestAlgorithm `json:"hashAlgorithm"`
	SerialNumber   string          `json:"serialNumber"`
	Nonce          string          `json:"nonce,omitempty"`
}

// Validation failure texts.
const (
	ErrTextUnparseable        = "token could not be parsed"
	ErrTextCertificateWindow  = "certificate outside validity window"
	ErrTextCertificateMissing = "TSA certificate not found"
	ErrTextHashMismatch       = "document hash mismatch — content may have been altered"
)

// Validation summary messages.
const (
	MessageValid         = "timestamp is valid and verified"
	MessageInvalid       = "timestamp validation failed"
	MessageInvalidFormat = "timestamp token has an invalid format"
	MessageGeneralError  = "timestamp could not be validated"
)

// ValidationReport is the outcome of Service.Validate. Valid is true exactly
// when Errors is empty.
type ValidationReport struct {
	Valid bool `json:"valid"`

	GenerationTime        *time.Time `json:"generationTime,omitempty"`
	TSAName               string     `json:"tsaName,omitempty"`
	HashAlgorithm         string     `json:"hashAlgorithm,omitempty"`
	SerialNumber          string     `json:"serialNumber,omitempty"`
	Nonce                 string     `json:"nonce,omitempty"`
	SignatureAlgorithm    string     `json:"signatureAlgorithm,omitempty"`
	SignatureAlgorithmOID string     `json:"signatureAlgorithmOid,omitempty"`
	HashAlgorithmOID      string     `json:"hashAlgorithmOid,omitempty"`
	TSACertificatePEM     string     `json:"tsaCertificatePem,omitempty"`

	CertificateValid     *bool      `json:"certificateValid,omitempty"`
	CertificateNotBefore *time.Time `json:"certificateNotBefore,omitempty"`
	CertificateNotAfter  *time.Time `json:"certificateNotAfter,omitempty"`

	// HashVerified is nil when no original document was supplied.
	HashVerified *bool `json:"hashVerified,omitempty"`

	Errors  []string `json:"errors"`
	Message string   `json:"message"`
}

func (r *ValidationReport) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationReport) finish() *ValidationReport {
	r.Valid = len(r.Errors) == 0
	r.Message = MessageInvalid
	if r.Valid {
		r.Message = MessageValid
	}
	return r
}

func unparseableReport() *ValidationReport {
	return &ValidationReport{
		Errors:  []string{ErrTextUnparseable},
		Message: MessageInvalidFormat,
	}
}

func generalErrorReport(cause any) *ValidationReport {
	return &ValidationReport{
		Errors:  []string{"general validation error: " + fmtCause(cause)},
		Message: MessageGeneralError,
	}
}

func ptr[T any](v T) *T { return &v }
