// Package api exposes the timestamp client over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/digitorus/tsaclient"
)

// TimestampService is implemented by *tsaclient.Service.
type TimestampService interface {
	Available() bool
	RequestTimestamp(ctx context.Context, document []byte, algorithm string) (*tsaclient.Result, error)
	Validate(token, original []byte) *tsaclient.ValidationReport
}

// CreditService is implemented by *tsaclient.CreditClient.
type CreditService interface {
	Available() bool
	CheckCredit(ctx context.Context) (*tsaclient.CreditResult, error)
}

// Error codes returned in JSON error bodies.
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeTimestampNotConfigured = "TIMESTAMP_NOT_CONFIGURED"
	CodeTimestampError         = "TIMESTAMP_ERROR"
	CodeVendorNotConfigured    = "VENDOR_NOT_CONFIGURED"
	CodeCreditCheckFailed      = "CREDIT_CHECK_FAILED"
	CodeInternalError          = "INTERNAL_ERROR"
)

// Handler provides the HTTP handlers for timestamping and credit queries.
type Handler struct {
	timestamps TimestampService
	credit     CreditService
	log        logrus.FieldLogger
	maxUpload  int64
}

// NewHandler creates a new handler. maxUpload bounds multipart bodies.
func NewHandler(ts TimestampService, credit CreditService, log logrus.FieldLogger, maxUpload int64) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{timestamps: ts, credit: credit, log: log, maxUpload: maxUpload}
}

// Routes registers the API routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/timestamp", func(r chi.Router) {
		r.Post("/get", h.GetTimestamp)
		r.Post("/validate", h.ValidateTimestamp)
		r.Get("/status", h.Status)
	})
	r.Get("/vendor/credit", h.Credit)

	return r
}

// GetTimestamp timestamps the uploaded "document" and returns the token.
func (h *Handler) GetTimestamp(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	doc, err := formFile(r, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "document: "+err.Error())
		return
	}
	alg := r.FormValue("hashAlgorithm")

	if !h.timestamps.Available() {
		writeError(w, http.StatusBadRequest, CodeTimestampNotConfigured, tsaclient.ErrNotConfigured.Error())
		return
	}
	res, err := h.timestamps.RequestTimestamp(r.Context(), doc, alg)
	switch {
	case errors.Is(err, tsaclient.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, CodeTimestampNotConfigured, err.Error())
		return
	case errors.Is(err, tsaclient.ErrRequestFailed):
		writeError(w, http.StatusBadRequest, CodeTimestampError, err.Error())
		return
	case err != nil:
		requestLogger(r, h.log).WithError(err).Error("timestamp request failed unexpectedly")
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/octet-stream")
	hdr.Set("Content-Disposition", `attachment; filename="timestamp.tst"`)
	hdr.Set("X-Timestamp-Time", res.GenerationTime.UTC().Format("2006-01-02T15:04:05Z"))
	hdr.Set("X-Timestamp-TSA", res.TSAName)
	hdr.Set("X-Timestamp-Serial", res.SerialNumber)
	hdr.Set("X-Timestamp-Hash-Algorithm", res.HashAlgorithm.String())
	if res.Nonce != "" {
		hdr.Set("X-Timestamp-Nonce", res.Nonce)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Token)
}

// ValidateTimestamp validates the uploaded "timestampToken" and, if given,
// checks it against "originalDocument".
func (h *Handler) ValidateTimestamp(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	token, err := formFile(r, "timestampToken")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "timestampToken: "+err.Error())
		return
	}
	original, err := formFile(r, "originalDocument")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "originalDocument: "+err.Error())
		return
	}
	// An empty upload counts as no document.
	if len(original) == 0 {
		original = nil
	}

	writeJSON(w, http.StatusOK, h.timestamps.Validate(token, original))
}

// StatusResponse reports whether timestamping is available.
type StatusResponse struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}

// Status reports whether a TSA is configured.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Configured: h.timestamps.Available(), Message: "timestamp service is ready"}
	if !resp.Configured {
		resp.Message = "timestamp service is not configured: TSA URL missing"
	}
	writeJSON(w, http.StatusOK, resp)
}

// Credit returns the remaining vendor credit.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	if h.credit == nil || !h.credit.Available() {
		writeError(w, http.StatusBadRequest, CodeVendorNotConfigured, "vendor credit query is not configured")
		return
	}
	res, err := h.credit.CheckCredit(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeCreditCheckFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "upload too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid multipart form: "+err.Error())
		return false
	}
	return true
}

func formFile(r *http.Request, name string) ([]byte, error) {
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
