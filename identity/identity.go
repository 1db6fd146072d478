// Package identity encodes the per-request identity token expected by vendor
// TSAs that authenticate customers without HTTP Basic credentials.
//
// The token binds a customer to the digest being stamped: the digest is
// encrypted with AES-256-CBC under a key derived from the customer password
// with PBKDF2-HMAC-SHA256, and the parameters travel with the ciphertext in a
// DER structure:
//
//	IdentityToken ::= SEQUENCE {
//	    customerId     INTEGER,
//	    salt           OCTET STRING,
//	    iterationCount INTEGER,
//	    iv             OCTET STRING,
//	    ciphertext     OCTET STRING }
//
// The DER bytes are hex encoded before they are placed in a header.
package identity

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterationCount is the PBKDF2 work factor vendor TSAs expect.
	DefaultIterationCount = 100
	// SaltSize is the PBKDF2 salt length in bytes.
	SaltSize = 16
	// IVSize is the AES-CBC initialisation vector length in bytes.
	IVSize = aes.BlockSize
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
)

// ErrEncryption is matched by every EncryptionError.
var ErrEncryption = errors.New("identity token encryption failed")

// EncryptionError reports a failure to produce or open an identity token.
type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("identity %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EncryptionError) Unwrap() error { return e.Err }

// Is reports ErrEncryption for every EncryptionError.
func (e *EncryptionError) Is(target error) bool { return target == ErrEncryption }

// Options tunes Encrypt. The zero value generates a fresh salt and IV from
// crypto/rand and uses DefaultIterationCount.
type Options struct {
	// Salt pins the PBKDF2 salt. Must be SaltSize bytes.
	Salt []byte
	// IV pins the initialisation vector. Must be IVSize bytes. Only
	// deterministic test vectors should set it.
	IV []byte
	// IterationCount overrides DefaultIterationCount.
	IterationCount int
	// Rand is the entropy source for salt and IV.
	Rand io.Reader
}

// Token is a decoded identity token.
type Token struct {
	CustomerID     int32
	Salt           []byte
	IterationCount int
	IV             []byte
	Ciphertext     []byte
}

// Encrypt builds the hex encoded identity token for customerID over dataHash.
func Encrypt(customerID int32, password string, dataHash []byte, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	iter := opts.IterationCount
	if iter == 0 {
		iter = DefaultIterationCount
	}
	if iter < 0 {
		return "", &EncryptionError{Op: "encrypt", Err: fmt.Errorf("negative iteration count %d", iter)}
	}

	salt, err := fixedOrRandom(opts.Salt, SaltSize, rnd)
	if err != nil {
		return "", &EncryptionError{Op: "salt", Err: err}
	}
	iv, err := fixedOrRandom(opts.IV, IVSize, rnd)
	if err != nil {
		return "", &EncryptionError{Op: "iv", Err: err}
	}

	block, err := aes.NewCipher(deriveKey(password, salt, iter))
	if err != nil {
		return "", &EncryptionError{Op: "encrypt", Err: err}
	}
	ciphertext := pad(dataHash, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	tok := &Token{
		CustomerID:     customerID,
		Salt:           salt,
		IterationCount: iter,
		IV:             iv,
		Ciphertext:     ciphertext,
	}
	der, err := tok.Marshal()
	if err != nil {
		return "", &EncryptionError{Op: "encode", Err: err}
	}
	return hex.EncodeToString(der), nil
}

// Marshal returns the DER form of the token.
func (t *Token) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(t.CustomerID))
		b.AddASN1OctetString(t.Salt)
		b.AddASN1Int64(int64(t.IterationCount))
		b.AddASN1OctetString(t.IV)
		b.AddASN1OctetString(t.Ciphertext)
	})
	return b.Bytes()
}

// Decode parses a hex encoded identity token.
func Decode(s string) (*Token, error) {
	der, err := hex.DecodeString(s)
	if err != nil {
		return nil, &EncryptionError{Op: "decode", Err: err}
	}

	var (
		in  = cryptobyte.String(der)
		seq cryptobyte.String
		t   Token
	)
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() ||
		!seq.ReadASN1Integer(&t.CustomerID) ||
		!seq.ReadASN1Bytes(&t.Salt, cbasn1.OCTET_STRING) ||
		!seq.ReadASN1Integer(&t.IterationCount) ||
		!seq.ReadASN1Bytes(&t.IV, cbasn1.OCTET_STRING) ||
		!seq.ReadASN1Bytes(&t.Ciphertext, cbasn1.OCTET_STRING) ||
		!seq.Empty() {
		return nil, &EncryptionError{Op: "decode", Err: errors.New("malformed identity token")}
	}
	return &t, nil
}

// Decrypt recovers the digest sealed in the token.
func (t *Token) Decrypt(password string) ([]byte, error) {
	if len(t.IV) != IVSize {
		return nil, &EncryptionError{Op: "decrypt", Err: fmt.Errorf("iv must be %d bytes, got %d", IVSize, len(t.IV))}
	}
	if len(t.Ciphertext) == 0 || len(t.Ciphertext)%aes.BlockSize != 0 {
		return nil, &EncryptionError{Op: "decrypt", Err: errors.New("ciphertext is not a whole number of blocks")}
	}
	block, err := aes.NewCipher(deriveKey(password, t.Salt, t.IterationCount))
	if err != nil {
		return nil, &EncryptionError{Op: "decrypt", Err: err}
	}
	plain := make([]byte, len(t.Ciphertext))
	cipher.NewCBCDecrypter(block, t.IV).CryptBlocks(plain, t.Ciphertext)
	out, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, &EncryptionError{Op: "decrypt", Err: err}
	}
	return out, nil
}

func deriveKey(password string, salt []byte, iter int) []byte {
	return pbkdf2.Key([]byte(password), salt, iter, KeySize, sha256.New)
}

func fixedOrRandom(fixed []byte, size int, rnd io.Reader) ([]byte, error) {
	if fixed != nil {
		if len(fixed) != size {
			return nil, fmt.Errorf("must be %d bytes, got %d", size, len(fixed))
		}
		return bytes.Clone(fixed), nil
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(rnd, b); err != nil {
		return nil, err
	}
	return b, nil
}

// pad applies PKCS#7 padding; the result is always a fresh slice.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
