package cryptox

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gideon/internal/common"
)

var keyEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// ParseMasterKey decodes a base64 master key (standard or URL alphabet,
// padded or not) and checks that it is exactly MasterKeySize bytes.
func ParseMasterKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("empty master key: %w", ErrInvalidKeySize)
	}

	for _, enc := range keyEncodings {
		key, err := enc.DecodeString(encoded)
		if err != nil {
			continue
		}
		if len(key) != MasterKeySize {
			common.WipeByteArray(key)
			return nil, fmt.Errorf("master key decodes to %d bytes: %w", len(key), ErrInvalidKeySize)
		}
		return key, nil
	}

	return nil, fmt.Errorf("master key is not valid base64: %w", ErrInvalidKeySize)
}

// GenerateMasterKey returns a fresh random master key.
func GenerateMasterKey() []byte {
	return common.GenerateRandByteArray(MasterKeySize)
}

// EncodeMasterKey renders key in the form ParseMasterKey accepts.
func EncodeMasterKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// MaskSecret returns a display preview of a secret: the first and last four
// characters around a mask, or just the mask for short secrets.
func MaskSecret(secret string) string {
	r := []rune(secret)
	if len(r) <= 8 {
		return "****"
	}
	return string(r[:4]) + "****" + string(r[len(r)-4:])
}
