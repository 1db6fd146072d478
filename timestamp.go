// Package tsaclient implements a client for the Time-Stamp Protocol (TSP) as
// specified in RFC3161 (Internet X.509 Public Key Infrastructure Time-Stamp
// Protocol (TSP)), including the identity-token authentication and credit
// query used by vendor TSAs that reject HTTP Basic authentication.
package tsaclient

import (
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// FailureInfo contains the result of an Time-Stamp request. See
// https://tools.ietf.org/html/rfc3161#section-2.4.2
type FailureInfo int

const (
	// BadAlgorithm defines an unrecognized or unsupported Algorithm Identifier
	BadAlgorithm FailureInfo = 0
	// BadRequest indicates that the transaction not permitted or supported
	BadRequest FailureInfo = 2
	// BadDataFormat means tha data submitted has the wrong format
	BadDataFormat FailureInfo = 5
	// TimeNotAvailable indicates that TSA's time source is not available
	TimeNotAvailable FailureInfo = 14
	// UnacceptedPolicy indicates that the requested TSA policy is not supported
	// by the TSA
	UnacceptedPolicy FailureInfo = 15
	// UnacceptedExtension indicates that the requested extension is not supported
	// by the TSA
	UnacceptedExtension FailureInfo = 16
	// AddInfoNotAvailable means that the information requested could not be
	// understood or is not available
	AddInfoNotAvailable FailureInfo = 17
	// SystemFailure indicates that the request cannot be handled due to system
	// failure
	SystemFailure FailureInfo = 25
)

var failureInfos = []FailureInfo{
	BadAlgorithm, BadRequest, BadDataFormat, TimeNotAvailable,
	UnacceptedPolicy, UnacceptedExtension, AddInfoNotAvailable, SystemFailure,
}

func (f FailureInfo) String() string {
	switch f {
	case BadAlgorithm:
		return "unrecognized or unsupported Algorithm Identifier"
	case BadRequest:
		return "transaction not permitted or supported"
	case BadDataFormat:
		return "the data submitted has the wrong format"
	case TimeNotAvailable:
		return "the TSA's time source is not available"
	case UnacceptedPolicy:
		return "the requested TSA policy is not supported by the TSA"
	case UnacceptedExtension:
		return "the requested extension is not supported by the TSA"
	case AddInfoNotAvailable:
		return "the additional information requested could not be understood or is not available"
	case SystemFailure:
		return "the request cannot be handled due to system failure"
	default:
		return "unknown failure: " + strconv.Itoa(int(f))
	}
}

// Status is the PKIStatus of a Time-Stamp response.
type Status int

const (
	// Granted means a TimeStampToken is present
	Granted Status = 0
	// GrantedWithMods means a TimeStampToken is present with modifications
	GrantedWithMods Status = 1
	// Rejection means the request was rejected
	Rejection Status = 2
	// Waiting means the request has not yet been processed
	Waiting Status = 3
	// RevocationWarning means a revocation is imminent
	RevocationWarning Status = 4
	// RevocationNotification means a revocation has occurred
	RevocationNotification Status = 5
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "the request is granted"
	case GrantedWithMods:
		return "the request is granted with modifications"
	case Rejection:
		return "the request is rejected"
	case Waiting:
		return "the request is waiting"
	case RevocationWarning:
		return "revocation is imminent"
	case RevocationNotification:
		return "revocation has occurred"
	default:
		return "unknown status: " + strconv.Itoa(int(s))
	}
}

// Request represents an Time-Stamp request. See
// https://tools.ietf.org/html/rfc3161#section-2.4.1
type Request struct {
	HashAlgorithm DigestAlgorithm
	HashedMessage []byte

	// Nonce is echoed by the TSA so a response can be tied to its request.
	Nonce *big.Int

	// Certificates indicates if the TSA needs to return the signing certificate
	// as part of the response.
	Certificates bool

	// TSAPolicyOID asks the TSA to stamp under a specific policy.
	TSAPolicyOID asn1.ObjectIdentifier

	// Extensions contains raw X.509 extensions from the Extensions field of the
	// Time-Stamp request. Marshal copies them into the request unchanged.
	Extensions []pkix.Extension
}

// ParseRequest parses an timestamp request in DER form.
func ParseRequest(bytes []byte) (*Request, error) {
	var req request

	rest, err := asn1.Unmarshal(bytes, &req)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ParseError("trailing data in Time-Stamp request")
	}

	if len(req.MessageImprint.HashedMessage) == 0 {
		return nil, ParseError("Time-Stamp request contains no hashed message")
	}

	alg, ok := DigestAlgorithmForOID(req.MessageImprint.HashAlgorithm.Algorithm)
	if !ok {
		return nil, ParseError("Time-Stamp request uses unknown hash function")
	}

	return &Request{
		HashAlgorithm: alg,
		HashedMessage: req.MessageImprint.HashedMessage,
		Nonce:         req.Nonce,
		Certificates:  req.CertReq,
		TSAPolicyOID:  req.ReqPolicy,
		Extensions:    req.Extensions,
	}, nil
}

// Marshal marshals the Time-Stamp request to ASN.1 DER encoded form.
func (req *Request) Marshal() ([]byte, error) {
	oid := req.HashAlgorithm.OID()
	if oid == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, req.HashAlgorithm)
	}
	return asn1.Marshal(request{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{
				Algorithm: oid,
				Parameters: asn1.RawValue{
					Tag: 5, /* ASN.1 NULL */
				},
			},
			HashedMessage: req.HashedMessage,
		},
		ReqPolicy:  req.TSAPolicyOID,
		Nonce:      req.Nonce,
		CertReq:    req.Certificates,
		Extensions: req.Extensions,
	})
}

// RequestOptions contains options for constructing timestamp requests.
type RequestOptions struct {
	// Algorithm is the digest used for the message imprint. If zero,
	// SHA256 will be used.
	Algorithm DigestAlgorithm

	// Nonce sets Request.Nonce
	Nonce *big.Int

	// Certificates sets Request.Certificates
	Certificates bool

	// TSAPolicyOID sets Request.TSAPolicyOID
	TSAPolicyOID asn1.ObjectIdentifier
}

func (opts *RequestOptions) algorithm() DigestAlgorithm {
	if opts == nil || opts.Algorithm == 0 {
		return DefaultDigestAlgorithm
	}
	return opts.Algorithm
}

// CreateRequest returns a DER-encoded timestamp request over the contents of
// r. If opts is nil then sensible defaults are used.
func CreateRequest(r io.Reader, opts *RequestOptions) ([]byte, error) {
	alg := opts.algorithm()
	hashFunc := alg.Hash()
	if hashFunc == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, alg)
	}
	if !hashFunc.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	h := hashFunc.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}

	req := &Request{
		HashAlgorithm: alg,
		HashedMessage: h.Sum(nil),
	}
	if opts != nil {
		req.Nonce = opts.Nonce
		req.Certificates = opts.Certificates
		req.TSAPolicyOID = opts.TSAPolicyOID
	}

	return req.Marshal()
}

// ParseResponse parses a Time-Stamp response in DER form and returns the
// embedded TimeStampToken, a DER encoded CMS ContentInfo.
//
// Parse failures result in a ParseError, as do responses whose status is
// neither granted nor granted with modifications.
func ParseResponse(bytes []byte) ([]byte, error) {
	var resp response

	rest, err := asn1.Unmarshal(bytes, &resp)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ParseError("trailing data in Time-Stamp response")
	}

	if s := Status(resp.Status.Status); s != Granted && s != GrantedWithMods {
		return nil, ParseError(resp.Status.describe())
	}

	if len(resp.TimeStampToken.Bytes) == 0 {
		return nil, ParseError("no pkcs7 data in Time-Stamp response")
	}

	return resp.TimeStampToken.FullBytes, nil
}

func (si pkiStatusInfo) describe() string {
	msg := fmt.Sprintf("%s: %s", Status(si.Status), strings.Join(si.StatusString, "; "))
	for _, f := range failureInfos {
		if si.FailInfo.At(int(f)) == 1 {
			return fmt.Sprintf("%s (%s)", msg, f)
		}
	}
	return msg
}

// newNonce returns a random positive 64-bit nonce.
func newNonce() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
}
