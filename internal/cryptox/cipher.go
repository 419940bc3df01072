package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gideon/internal/common"
)

// MasterKeySize is the only accepted master key length (AES-256).
const MasterKeySize = 32

// cipherV1 marks tokens laid out as version || nonce || ciphertext+tag,
// sealed with AES-256-GCM and the version byte as additional data.
const cipherV1 byte = 0x01

var (
	ErrInvalidKeySize = errors.New("invalid key size: must be 32 bytes for AES-256")

	// ErrIntegrity means a ciphertext token failed authentication: it was
	// tampered with, corrupted or sealed under another key.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	ErrMalformedCiphertext = fmt.Errorf("%w: malformed ciphertext", ErrIntegrity)
	ErrUnsupportedVersion  = fmt.Errorf("%w: unsupported ciphertext version", ErrIntegrity)
)

var tokenEncoding = base64.RawURLEncoding.Strict()

// SecretCipher encrypts at-rest secrets under a server-held master key.
// Tokens are URL-safe base64 strings carrying the format version, a fresh
// nonce and the GCM tag, so no IV has to be stored next to them.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher validates key and prepares the AEAD. A key of the wrong
// length is a configuration problem and is reported as ErrInvalidKeySize.
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) != MasterKeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the encoded token.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(c.aead.NonceSize())

	header := []byte{cipherV1}

	buf := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+c.aead.Overhead())
	buf = append(buf, header...)
	buf = append(buf, nonce...)

	pt := []byte(plaintext)
	buf = c.aead.Seal(buf, nonce, pt, header)
	common.WipeByteArray(pt)

	return tokenEncoding.EncodeToString(buf), nil
}

// Decrypt authenticates and opens token. Any failure wraps ErrIntegrity and
// no plaintext is returned.
func (c *SecretCipher) Decrypt(token string) (string, error) {
	raw, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < 1+nonceSize+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}
	if raw[0] != cipherV1 {
		return "", ErrUnsupportedVersion
	}

	nonce, sealed := raw[1:1+nonceSize], raw[1+nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, []byte{cipherV1})
	if err != nil {
		return "", ErrIntegrity
	}

	s := string(plaintext)
	common.WipeByteArray(plaintext)
	return s, nil
}
