package tsaclient

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/digitorus/pkcs7"
	"github.com/sirupsen/logrus"
)

// ParsedToken is the content of a TimeStampToken. Parsing does not check the
// CMS signature.
type ParsedToken struct {
	// Raw is the DER CMS ContentInfo of the token.
	Raw []byte

	GenTime      time.Time
	SerialNumber *big.Int
	Nonce        *big.Int
	Policy       asn1.ObjectIdentifier
	Accuracy     time.Duration
	Ordering     bool

	// TSAName is the optional tsa field of TSTInfo, empty when absent.
	TSAName string

	HashAlgorithmOID asn1.ObjectIdentifier
	HashedMessage    []byte

	Certificates      []*x509.Certificate
	SignerCertificate *x509.Certificate

	SignerDigestOID     asn1.ObjectIdentifier
	SignerEncryptionOID asn1.ObjectIdentifier
	// SignatureAlgorithm is a readable name such as "RSA with SHA256", or
	// the dotted encryption OID when the algorithm is unknown.
	SignatureAlgorithm string

	Extensions []pkix.Extension
}

// HashAlgorithm maps the message imprint algorithm.
func (t *ParsedToken) HashAlgorithm() (DigestAlgorithm, bool) {
	return DigestAlgorithmForOID(t.HashAlgorithmOID)
}

type parseStrategy struct {
	name string
	// unwrap returns the CMS ContentInfo bytes to parse
	unwrap func([]byte) ([]byte, error)
}

// TokenParser recognises timestamp tokens in the encodings seen in practice:
// a bare CMS SignedData token and a full TimeStampResp.
type TokenParser struct {
	Log logrus.FieldLogger

	strategies []parseStrategy
}

// NewTokenParser returns a parser trying a bare token first, then a
// TimeStampResp envelope.
func NewTokenParser(log logrus.FieldLogger) *TokenParser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TokenParser{
		Log: log,
		strategies: []parseStrategy{
			{name: "signed-data", unwrap: func(b []byte) ([]byte, error) { return b, nil }},
			{name: "timestamp-response", unwrap: ParseResponse},
		},
	}
}

// Parse returns the first successful interpretation of b, or nil when no
// strategy recognises it.
func (p *TokenParser) Parse(b []byte) *ParsedToken {
	if len(b) == 0 {
		return nil
	}
	for _, s := range p.strategies {
		raw, err := s.unwrap(b)
		if err == nil {
			var tok *ParsedToken
			if tok, err = parseToken(raw); err == nil {
				return tok
			}
		}
		p.Log.WithError(err).WithField("strategy", s.name).Debug("token parse strategy failed")
	}
	return nil
}

func parseToken(raw []byte) (*ParsedToken, error) {
	p7, err := pkcs7.Parse(raw)
	if err != nil {
		return nil, err
	}

	var inf tstInfo
	rest, err := asn1.Unmarshal(p7.Content, &inf)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ParseError("trailing data in TSTInfo")
	}
	if len(inf.MessageImprint.HashedMessage) == 0 {
		return nil, ParseError("Time-Stamp token contains no hashed message")
	}

	tok := &ParsedToken{
		Raw:          raw,
		GenTime:      inf.Time,
		SerialNumber: inf.SerialNumber,
		Nonce:        inf.Nonce,
		Policy:       inf.Policy,
		Accuracy: time.Duration((time.Second * time.Duration(inf.Accuracy.Seconds)) +
			(time.Millisecond * time.Duration(inf.Accuracy.Milliseconds)) +
			(time.Microsecond * time.Duration(inf.Accuracy.Microseconds))),
		Ordering:         inf.Ordering,
		TSAName:          generalNameString(inf.TSA),
		HashAlgorithmOID: inf.MessageImprint.HashAlgorithm.Algorithm,
		HashedMessage:    inf.MessageImprint.HashedMessage,
		Certificates:     p7.Certificates,
		Extensions:       inf.Extensions,
	}

	if len(p7.Signers) > 0 {
		si := p7.Signers[0]
		tok.SignerDigestOID = si.DigestAlgorithm.Algorithm
		tok.SignerEncryptionOID = si.DigestEncryptionAlgorithm.Algorithm
		tok.SignatureAlgorithm = resolveSignatureAlgorithm(tok.SignerDigestOID, tok.SignerEncryptionOID)
	}
	// The TSA certificate is the first one in the store, whatever the
	// SignerInfo names.
	if len(p7.Certificates) > 0 {
		tok.SignerCertificate = p7.Certificates[0]
	}

	return tok, nil
}

// generalNameString renders the directoryName, dNSName and URI forms of a
// GeneralName.
func generalNameString(v asn1.RawValue) string {
	if v.Class != asn1.ClassContextSpecific {
		return ""
	}
	switch v.Tag {
	case 4:
		var rdn pkix.RDNSequence
		if _, err := asn1.Unmarshal(v.Bytes, &rdn); err != nil {
			return ""
		}
		var name pkix.Name
		name.FillFromRDNSequence(&rdn)
		return name.String()
	case 2, 6:
		return string(v.Bytes)
	}
	return ""
}
