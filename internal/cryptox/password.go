package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/gideon/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted by the strength policy.
const MinPasswordLength = 8

var ErrInvalidDigest = errors.New("invalid password digest")

// Argon2Params tunes argon2id. Digests embed the parameters they were made
// with, so changing them only affects new digests.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// PasswordHasher produces and checks PHC-formatted argon2id digests:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// The salt is random per call and embedded in the digest. Verify also accepts
// bcrypt digests ($2a$, $2b$, $2y$) written by earlier deployments.
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: p}
}

// Hash returns a digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(int(h.params.SaltLen))
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest. Malformed digests never match.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}

	p, salt, key, err := decodeArgon2Digest(digest)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1
}

// NeedsRehash reports whether digest was produced by a different scheme or
// with parameters other than the hasher's current ones.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		return true
	}
	p, _, _, err := decodeArgon2Digest(digest)
	if err != nil {
		return true
	}
	return p.Time != h.params.Time || p.Memory != h.params.Memory ||
		p.Threads != h.params.Threads || p.KeyLen != h.params.KeyLen
}

// MeetsStrengthPolicy checks password against the strength policy and returns
// a human-readable reason for the first failing rule.
func (h *PasswordHasher) MeetsStrengthPolicy(password string) (bool, string) {
	return MeetsStrengthPolicy(password)
}

// MeetsStrengthPolicy requires at least MinPasswordLength characters and at
// least one uppercase letter, one lowercase letter and one digit.
func MeetsStrengthPolicy(password string) (bool, string) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return false, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !(upper && lower && digit) {
		return false, "Password must contain uppercase, lowercase, and numeric characters"
	}

	return true, "Password meets requirements"
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}

func decodeArgon2Digest(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, hash
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrInvalidDigest
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
		return p, nil, nil, ErrInvalidDigest
	}
	if p.Time == 0 || p.Memory == 0 || threads == 0 || threads > 255 {
		return p, nil, nil, ErrInvalidDigest
	}
	p.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrInvalidDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidDigest
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}
