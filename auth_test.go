package tsaclient

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitorus/tsaclient/identity"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestBasicAuthScope(t *testing.T) {
	a := NewBasicAuth(mustURL(t, "https://tsa.example.com/tsr"), "alice", "s3cret")
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))

	tests := []struct {
		target string
		send   bool
	}{
		{"https://tsa.example.com/tsr", true},
		{"https://tsa.example.com:443/other", true},
		{"https://TSA.example.com/tsr", true},
		{"http://tsa.example.com/tsr", false},
		{"https://tsa.example.com:8443/tsr", false},
		{"https://evil.example.com/tsr", false},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			h := a.Headers(mustURL(t, tc.target), nil)
			if tc.send {
				assert.Equal(t, want, h.Get("Authorization"))
			} else {
				assert.Empty(t, h.Get("Authorization"))
			}
		})
	}

	plain := NewBasicAuth(mustURL(t, "http://tsa.example.com/tsr"), "bob", "pw")
	assert.NotEmpty(t, plain.Headers(mustURL(t, "http://tsa.example.com:80/x"), nil).Get("Authorization"))
	assert.NotContains(t, plain.String(), "pw")
}

func TestNoAuth(t *testing.T) {
	assert.Empty(t, NoAuth{}.Headers(mustURL(t, "http://tsa.example.com"), []byte{1}))
}

func TestExtractImprint(t *testing.T) {
	digest, err := Digest([]byte("Hello World!"), SHA256)
	require.NoError(t, err)
	req, err := (&Request{HashAlgorithm: SHA256, HashedMessage: digest, Certificates: true}).Marshal()
	require.NoError(t, err)

	got, err := extractImprint(req)
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	for _, bad := range [][]byte{nil, []byte("garbage"), {0x30, 0x03, 0x02, 0x01, 0x01}} {
		_, err := extractImprint(bad)
		assert.Error(t, err)
	}
}

func TestVendorAuthHeaders(t *testing.T) {
	digest, err := Digest([]byte("vendor"), SHA256)
	require.NoError(t, err)
	req, err := (&Request{HashAlgorithm: SHA256, HashedMessage: digest}).Marshal()
	require.NoError(t, err)

	a := &VendorAuth{CustomerID: 1234, Password: "pw", Log: testLogger()}
	h := a.Headers(nil, req)

	require.Contains(t, h, HeaderIdentity, "identity header must keep its lowercase key")
	assert.Equal(t, []string{VendorUserAgent}, h["User-Agent"])

	tok, err := identity.Decode(h[HeaderIdentity][0])
	require.NoError(t, err)
	assert.Equal(t, int32(1234), tok.CustomerID)
	plain, err := tok.Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, digest, plain)
}

func TestVendorAuthFallsBackUnauthenticated(t *testing.T) {
	log, hook := test.NewNullLogger()
	a := &VendorAuth{CustomerID: 1, Password: "pw", Log: log}

	h := a.Headers(nil, []byte("definitely not DER"))
	assert.Empty(t, h)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestVendorAuthEncryptionFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	digest, _ := Digest([]byte("x"), SHA256)
	req, err := (&Request{HashAlgorithm: SHA256, HashedMessage: digest}).Marshal()
	require.NoError(t, err)

	a := &VendorAuth{
		CustomerID: 1,
		Password:   "pw",
		Log:        log,
		Identity:   &identity.Options{Rand: bytes.NewReader(nil)},
	}
	assert.Empty(t, a.Headers(nil, req))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
