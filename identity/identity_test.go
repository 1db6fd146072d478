package identity

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

var (
	testSalt = bytes.Repeat([]byte{0x01}, SaltSize)
	testIV   = bytes.Repeat([]byte{0x02}, IVSize)
	testHash = sha256.Sum256([]byte("Hello World!"))
)

func TestEncryptDeterministicWhenPinned(t *testing.T) {
	opts := &Options{Salt: testSalt, IV: testIV}

	a, err := Encrypt(12345, "secret", testHash[:], opts)
	require.NoError(t, err)
	b, err := Encrypt(12345, "secret", testHash[:], opts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, strings.ToLower(a), a, "token must be lowercase hex")
	assert.True(t, strings.HasPrefix(a, "30"), "token must be a DER SEQUENCE")
}

func TestEncryptFreshIVPerCall(t *testing.T) {
	a, err := Encrypt(12345, "secret", testHash[:], &Options{Salt: testSalt})
	require.NoError(t, err)
	b, err := Encrypt(12345, "secret", testHash[:], &Options{Salt: testSalt})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	ta, err := Decode(a)
	require.NoError(t, err)
	tb, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, ta.Salt, tb.Salt)
	assert.NotEqual(t, ta.IV, tb.IV)
}

func TestEncryptFields(t *testing.T) {
	s, err := Encrypt(12345, "secret", testHash[:], &Options{Salt: testSalt, IV: testIV})
	require.NoError(t, err)

	tok, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, int32(12345), tok.CustomerID)
	assert.Equal(t, testSalt, tok.Salt)
	assert.Equal(t, DefaultIterationCount, tok.IterationCount)
	assert.Equal(t, testIV, tok.IV)
	// 32 byte digest plus one full block of padding
	assert.Len(t, tok.Ciphertext, 48)

	// decrypt independently of Token.Decrypt
	key := pbkdf2.Key([]byte("secret"), testSalt, 100, 32, sha256.New)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	plain := make([]byte, len(tok.Ciphertext))
	cipher.NewCBCDecrypter(block, testIV).CryptBlocks(plain, tok.Ciphertext)
	assert.Equal(t, testHash[:], plain[:32])
	assert.Equal(t, bytes.Repeat([]byte{16}, 16), plain[32:])
}

func TestDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		iter int
	}{
		{"sha256 digest", testHash[:], 0},
		{"sha1 digest", make([]byte, 20), 0},
		{"empty", []byte{}, 0},
		{"block aligned", make([]byte, 16), 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Encrypt(7, "pässwörd", tc.data, &Options{IterationCount: tc.iter})
			require.NoError(t, err)

			tok, err := Decode(s)
			require.NoError(t, err)
			got, err := tok.Decrypt("pässwörd")
			require.NoError(t, err)
			assert.Equal(t, tc.data, got)
		})
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	s, err := Encrypt(7, "right", testHash[:], nil)
	require.NoError(t, err)
	tok, err := Decode(s)
	require.NoError(t, err)

	got, err := tok.Decrypt("wrong")
	if err == nil {
		// padding can validate by chance; the plaintext still differs
		assert.NotEqual(t, testHash[:], got)
		return
	}
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestEncryptErrors(t *testing.T) {
	_, err := Encrypt(1, "pw", testHash[:], &Options{Salt: []byte{1, 2, 3}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncryption)

	_, err = Encrypt(1, "pw", testHash[:], &Options{IV: make([]byte, 8)})
	assert.ErrorIs(t, err, ErrEncryption)

	_, err = Encrypt(1, "pw", testHash[:], &Options{Rand: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrEncryption)

	var ee *EncryptionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "salt", ee.Op)
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"zz", "", "3000", "0400", hex.EncodeToString([]byte{0x30, 0x03, 0x02, 0x01, 0x01})} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrEncryption, "input %q", in)
	}
}

func TestNegativeCustomerID(t *testing.T) {
	s, err := Encrypt(-42, "pw", testHash[:], nil)
	require.NoError(t, err)
	tok, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, int32(-42), tok.CustomerID)
}
