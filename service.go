package tsaclient

import (
	"bytes"
	"context"
	"encoding/pem"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/digitorus/tsaclient/internal/metrics"
)

// Service requests and validates timestamps.
type Service struct {
	registry *SourceRegistry
	parser   *TokenParser
	opts     options
}

// NewService returns a Service sending requests through registry.
func NewService(registry *SourceRegistry, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		registry: registry,
		parser:   NewTokenParser(o.log),
		opts:     o,
	}
}

// Available reports whether a TSA is configured.
func (s *Service) Available() bool {
	return s.registry.Available()
}

// RequestTimestamp digests document with the named algorithm (SHA256 when
// empty) and obtains a timestamp over the digest. Every failure is a
// *RequestError wrapping the cause.
func (s *Service) RequestTimestamp(ctx context.Context, document []byte, algorithm string) (*Result, error) {
	res, err := s.requestTimestamp(ctx, document, algorithm)
	metrics.RecordTimestampRequest(err)
	if err != nil {
		s.opts.log.WithError(err).Warn("timestamp request failed")
		return nil, err
	}
	s.opts.log.WithFields(logrus.Fields{
		"serial":         res.SerialNumber,
		"hash_algorithm": res.HashAlgorithm,
		"tsa":            res.TSAName,
	}).Info("timestamp obtained")
	return res, nil
}

func (s *Service) requestTimestamp(ctx context.Context, document []byte, algorithm string) (*Result, error) {
	alg, err := ParseDigestAlgorithm(algorithm)
	if err != nil {
		return nil, &RequestError{Op: "algorithm", Err: err}
	}
	digest, err := Digest(document, alg)
	if err != nil {
		return nil, &RequestError{Op: "digest", Err: err}
	}

	src, err := s.registry.Get()
	if err != nil {
		return nil, &RequestError{Op: "source", Err: err}
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, &RequestError{Op: "request", Err: err}
	}
	req := &Request{
		HashAlgorithm: alg,
		HashedMessage: digest,
		Nonce:         nonce,
		Certificates:  true,
	}
	tsq, err := req.Marshal()
	if err != nil {
		return nil, &RequestError{Op: "request", Err: err}
	}

	tsr, err := src.Post(ctx, tsq)
	if err != nil {
		return nil, &RequestError{Op: "send", Err: err}
	}

	raw, err := ParseResponse(tsr)
	if err != nil {
		return nil, &RequestError{Op: "response", Err: err}
	}
	tok, err := parseToken(raw)
	if err != nil {
		return nil, &RequestError{Op: "response", Err: err}
	}
	if tok.Nonce == nil || tok.Nonce.Cmp(nonce) != 0 {
		return nil, &RequestError{Op: "response", Err: fmt.Errorf("%w: sent %s, got %v", ErrNonceMismatch, nonce, tok.Nonce)}
	}
	if !tok.HashAlgorithmOID.Equal(alg.OID()) || !bytes.Equal(tok.HashedMessage, digest) {
		return nil, &RequestError{Op: "response", Err: ErrImprintMismatch}
	}

	return &Result{
		Token:          tok.Raw,
		GenerationTime: tok.GenTime.UTC(),
		TSAName:        tsaName(tok),
		HashAlgorithm:  alg,
		SerialNumber:   tok.SerialNumber.String(),
		Nonce:          tok.Nonce.String(),
	}, nil
}

// Validate inspects token and, when original is non-nil, checks that the
// token covers it. Validate never fails: every problem is reported in the
// returned report.
func (s *Service) Validate(token, original []byte) (report *ValidationReport) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.log.WithField("panic", r).Error("timestamp validation aborted")
			report = generalErrorReport(r)
		}
		metrics.RecordValidation(report.Valid)
	}()

	tok := s.parser.Parse(token)
	if tok == nil {
		return unparseableReport()
	}

	report = &ValidationReport{
		TSAName:               tsaName(tok),
		HashAlgorithmOID:      tok.HashAlgorithmOID.String(),
		HashAlgorithm:         tok.HashAlgorithmOID.String(),
		SignatureAlgorithm:    tok.SignatureAlgorithm,
		SignatureAlgorithmOID: tok.SignerEncryptionOID.String(),
		Errors:                []string{},
	}
	if !tok.GenTime.IsZero() {
		report.GenerationTime = ptr(tok.GenTime.UTC())
	}
	if tok.SerialNumber != nil {
		report.SerialNumber = tok.SerialNumber.String()
	}
	if tok.Nonce != nil {
		report.Nonce = tok.Nonce.String()
	}
	alg, knownAlg := tok.HashAlgorithm()
	if knownAlg {
		report.HashAlgorithm = alg.String()
	}

	if cert := tok.SignerCertificate; cert != nil {
		now := s.opts.now()
		valid := !now.Before(cert.NotBefore) && !now.After(cert.NotAfter)
		report.CertificateValid = &valid
		report.CertificateNotBefore = ptr(cert.NotBefore.UTC())
		report.CertificateNotAfter = ptr(cert.NotAfter.UTC())
		report.TSACertificatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
		if !valid {
			report.addError(ErrTextCertificateWindow)
		}
	} else {
		report.addError(ErrTextCertificateMissing)
	}

	if original != nil {
		s.verifyImprint(report, tok, alg, knownAlg, original)
	}

	report.finish()
	s.opts.log.WithFields(logrus.Fields{
		"valid":  report.Valid,
		"serial": report.SerialNumber,
		"errors": len(report.Errors),
	}).Debug("timestamp validated")
	return report
}

func (s *Service) verifyImprint(report *ValidationReport, tok *ParsedToken, alg DigestAlgorithm, known bool, original []byte) {
	if !known {
		report.addError("hash verification could not be performed: unsupported message imprint algorithm " + tok.HashAlgorithmOID.String())
		return
	}
	digest, err := Digest(original, alg)
	if err != nil {
		report.addError("hash verification could not be performed: " + err.Error())
		return
	}
	match := bytes.Equal(digest, tok.HashedMessage)
	report.HashVerified = &match
	if !match {
		report.addError(ErrTextHashMismatch)
	}
}

// tsaName prefers the subject of the signing certificate and falls back to
// the tsa field of TSTInfo.
func tsaName(tok *ParsedToken) string {
	if tok.SignerCertificate != nil {
		return tok.SignerCertificate.Subject.String()
	}
	return tok.TSAName
}

func fmtCause(cause any) string {
	if err, ok := cause.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(cause)
}
