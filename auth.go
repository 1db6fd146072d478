package tsaclient

import (
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/digitorus/tsaclient/identity"
	"github.com/digitorus/tsaclient/internal/metrics"
)

// Header names and values fixed by the vendor protocol. They are sent exactly
// as written here, without MIME canonicalisation.
const (
	HeaderIdentity      = "identity"
	HeaderCreditRequest = "credit_req"
	HeaderCreditTime    = "credit_req_time"
	VendorUserAgent     = "UEKAE TSS Client"
)

// An Authenticator produces the authentication headers for a request body
// sent to target.
type Authenticator interface {
	Headers(target *url.URL, body []byte) http.Header
}

// NoAuth sends requests without credentials.
type NoAuth struct{}

// Headers implements Authenticator.
func (NoAuth) Headers(*url.URL, []byte) http.Header { return nil }

// BasicAuth sends preemptive HTTP Basic credentials, but only to the scheme,
// host and port of the TSA URL it was created for.
type BasicAuth struct {
	Username string
	Password string

	scope authScope
}

type authScope struct {
	scheme, host, port string
}

func scopeOf(u *url.URL) authScope {
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	return authScope{scheme: scheme, host: strings.ToLower(u.Hostname()), port: port}
}

// NewBasicAuth binds username and password to the origin of tsaURL.
func NewBasicAuth(tsaURL *url.URL, username, password string) *BasicAuth {
	return &BasicAuth{Username: username, Password: password, scope: scopeOf(tsaURL)}
}

// Headers implements Authenticator.
func (a *BasicAuth) Headers(target *url.URL, _ []byte) http.Header {
	if target == nil || scopeOf(target) != a.scope {
		return nil
	}
	cred := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	return http.Header{"Authorization": {"Basic " + cred}}
}

// String identifies the scope without exposing the password.
func (a *BasicAuth) String() string {
	return "basic " + a.Username + "@" + a.scope.scheme + "://" + net.JoinHostPort(a.scope.host, a.scope.port)
}

// VendorAuth replaces HTTP Basic with an identity token computed over the
// message imprint of every TimeStampReq.
type VendorAuth struct {
	CustomerID int32
	Password   string

	// Identity tunes token generation; nil uses the defaults.
	Identity *identity.Options
	Log      logrus.FieldLogger
}

// Headers implements Authenticator. If the imprint cannot be extracted or
// encrypted the request is sent without an identity header; the vendor TSA
// is then expected to reject it.
func (a *VendorAuth) Headers(_ *url.URL, body []byte) http.Header {
	log := a.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("customer_id", a.CustomerID)

	hash, err := extractImprint(body)
	if err != nil {
		log.WithError(err).Error("vendor auth: cannot read message imprint from TSP request, sending request WITHOUT identity header")
		metrics.RecordVendorAuthFallback()
		return nil
	}

	tok, err := identity.Encrypt(a.CustomerID, a.Password, hash, a.Identity)
	if err != nil {
		log.WithError(err).Error("vendor auth: identity token generation failed, sending request WITHOUT identity header")
		metrics.RecordVendorAuthFallback()
		return nil
	}

	log.WithFields(logrus.Fields{
		"token_len":    len(tok),
		"token_prefix": tok[:min(16, len(tok))],
	}).Debug("vendor auth: identity header attached")

	return http.Header{
		HeaderIdentity: {tok},
		"User-Agent":   {VendorUserAgent},
	}
}

// extractImprint returns the hashedMessage of a DER TimeStampReq: the OCTET
// STRING that is the second element of the second element of the top level
// SEQUENCE.
func extractImprint(req []byte) ([]byte, error) {
	var (
		in                    = cryptobyte.String(req)
		body, imprint, ignore cryptobyte.String
		tag                   cbasn1.Tag
		hash                  []byte
	)
	if !in.ReadASN1(&body, cbasn1.SEQUENCE) ||
		!body.ReadAnyASN1(&ignore, &tag) ||
		!body.ReadASN1(&imprint, cbasn1.SEQUENCE) ||
		!imprint.ReadAnyASN1(&ignore, &tag) ||
		!imprint.ReadASN1Bytes(&hash, cbasn1.OCTET_STRING) {
		return nil, errors.New("not a TimeStampReq")
	}
	return hash, nil
}
