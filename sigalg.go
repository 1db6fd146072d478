package tsaclient

import (
	"encoding/asn1"
)

// keyAlgorithms names the signerInfo digestEncryptionAlgorithm values that
// identify only a key type.
var keyAlgorithms = []struct {
	oid  asn1.ObjectIdentifier
	name string
}{
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}, "RSA"},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}, "RSASSA-PSS"},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}, "ECDSA"},
	{asn1.ObjectIdentifier{1, 2, 840, 10040, 4, 1}, "DSA"},
}

// signatureAlgorithms are complete signature algorithms: a key type bound to
// a digest.
var signatureAlgorithms = []struct {
	oid    asn1.ObjectIdentifier
	key    string
	digest DigestAlgorithm
}{
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}, "RSA", SHA1},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 14}, "RSA", SHA224},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, "RSA", SHA256},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}, "RSA", SHA384},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}, "RSA", SHA512},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}, "ECDSA", SHA1},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 1}, "ECDSA", SHA224},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}, "ECDSA", SHA256},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}, "ECDSA", SHA384},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}, "ECDSA", SHA512},
	{asn1.ObjectIdentifier{1, 2, 840, 10040, 4, 3}, "DSA", SHA1},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 1}, "DSA", SHA224},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 2}, "DSA", SHA256},
}

var oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

func keyAlgorithmName(oid asn1.ObjectIdentifier) (string, bool) {
	for _, k := range keyAlgorithms {
		if k.oid.Equal(oid) {
			return k.name, true
		}
	}
	return "", false
}

func keyAlgorithmOID(name string) asn1.ObjectIdentifier {
	for _, k := range keyAlgorithms {
		if k.name == name {
			return k.oid
		}
	}
	return nil
}

// signatureAlgorithmResolvers run in order; the first non-empty name wins.
var signatureAlgorithmResolvers = []func(digest, enc asn1.ObjectIdentifier) string{
	// the encryption OID already is a complete signature algorithm
	func(_, enc asn1.ObjectIdentifier) string {
		if enc.Equal(oidEd25519) {
			return "Ed25519"
		}
		for _, s := range signatureAlgorithms {
			if s.oid.Equal(enc) {
				return s.key + " with " + s.digest.String()
			}
		}
		return ""
	},
	// a key type OID combined with the digest OID
	func(digest, enc asn1.ObjectIdentifier) string {
		alg, ok := DigestAlgorithmForOID(digest)
		if !ok {
			return ""
		}
		for _, s := range signatureAlgorithms {
			if s.digest == alg && keyAlgorithmOID(s.key).Equal(enc) {
				return s.key + " with " + s.digest.String()
			}
		}
		return ""
	},
	// both parts are known on their own but not as a registered pair
	func(digest, enc asn1.ObjectIdentifier) string {
		alg, ok := DigestAlgorithmForOID(digest)
		if !ok {
			return ""
		}
		key, ok := keyAlgorithmName(enc)
		if !ok {
			return ""
		}
		return alg.String() + " with " + key
	},
}

// resolveSignatureAlgorithm names the signature algorithm of a signerInfo.
// Unknown combinations fall back to the dotted encryption OID.
func resolveSignatureAlgorithm(digest, enc asn1.ObjectIdentifier) string {
	for _, resolve := range signatureAlgorithmResolvers {
		if name := resolve(digest, enc); name != "" {
			return name
		}
	}
	return enc.String()
}
