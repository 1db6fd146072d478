package tsaclient

import (
	"crypto"
	_ "crypto/sha1" // register hash implementations
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"fmt"
	"strings"
)

// DigestAlgorithm is a hash algorithm usable for message imprints.
type DigestAlgorithm int

// Supported digest algorithms.
const (
	SHA1 DigestAlgorithm = iota + 1
	SHA224
	SHA256
	SHA384
	SHA512
)

// DefaultDigestAlgorithm is used when no algorithm name is given.
const DefaultDigestAlgorithm = SHA256

var digestAlgorithms = []struct {
	alg  DigestAlgorithm
	name string
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
}{
	{SHA1, "SHA1", asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, crypto.SHA1},
	{SHA224, "SHA224", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}, crypto.SHA224},
	{SHA256, "SHA256", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, crypto.SHA256},
	{SHA384, "SHA384", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, crypto.SHA384},
	{SHA512, "SHA512", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, crypto.SHA512},
}

func (a DigestAlgorithm) String() string {
	for _, d := range digestAlgorithms {
		if d.alg == a {
			return d.name
		}
	}
	return fmt.Sprintf("DigestAlgorithm(%d)", int(a))
}

// OID returns the algorithm identifier, or nil for an unknown algorithm.
func (a DigestAlgorithm) OID() asn1.ObjectIdentifier {
	for _, d := range digestAlgorithms {
		if d.alg == a {
			return d.oid
		}
	}
	return nil
}

// Hash returns the crypto.Hash implementing the algorithm.
func (a DigestAlgorithm) Hash() crypto.Hash {
	for _, d := range digestAlgorithms {
		if d.alg == a {
			return d.hash
		}
	}
	return 0
}

// MarshalText encodes the algorithm as its canonical name.
func (a DigestAlgorithm) MarshalText() ([]byte, error) {
	if a.OID() == nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlgorithm, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts any name ParseDigestAlgorithm accepts.
func (a *DigestAlgorithm) UnmarshalText(text []byte) error {
	alg, err := ParseDigestAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

// ParseDigestAlgorithm resolves a user supplied algorithm name. Matching
// ignores case, dashes, underscores and surrounding space, so "sha-256",
// "SHA_256" and "SHA256" are equivalent. An empty name selects SHA256.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return DefaultDigestAlgorithm, nil
	}
	n = strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(n))
	for _, d := range digestAlgorithms {
		if d.name == n {
			return d.alg, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (supported: SHA1, SHA224, SHA256, SHA384, SHA512)", ErrInvalidAlgorithm, name)
}

// DigestAlgorithmForOID maps a message imprint algorithm identifier.
func DigestAlgorithmForOID(oid asn1.ObjectIdentifier) (DigestAlgorithm, bool) {
	for _, d := range digestAlgorithms {
		if d.oid.Equal(oid) {
			return d.alg, true
		}
	}
	return 0, false
}

// DigestAlgorithmForHash maps a crypto.Hash.
func DigestAlgorithmForHash(h crypto.Hash) (DigestAlgorithm, bool) {
	for _, d := range digestAlgorithms {
		if d.hash == h {
			return d.alg, true
		}
	}
	return 0, false
}

// Digest hashes data with alg.
func Digest(data []byte, alg DigestAlgorithm) ([]byte, error) {
	h := alg.Hash()
	if h == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAlgorithm, alg)
	}
	if !h.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	w := h.New()
	w.Write(data)
	return w.Sum(nil), nil
}
