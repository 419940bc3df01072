package keytool

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type harness struct {
	app *App
	out *bytes.Buffer
	err *bytes.Buffer
}

func newHarness(stdin string, env map[string]string) *harness {
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut, strings.NewReader(stdin), func(k string) string { return env[k] })
	app.Hasher = cryptox.NewPasswordHasher(cryptox.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	return &harness{app: app, out: &out, err: &errOut}
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		pw := []byte(answers[i])
		i++
		return pw, nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func TestRun_Usage(t *testing.T) {
	h := newHarness("", nil)
	assert.Equal(t, exitUsage, h.app.Run(nil))
	assert.Contains(t, h.err.String(), "usage: keytool")

	h = newHarness("", nil)
	assert.Equal(t, exitUsage, h.app.Run([]string{"frobnicate"}))
	assert.Contains(t, h.err.String(), `unknown command "frobnicate"`)

	h = newHarness("", nil)
	assert.Equal(t, exitOK, h.app.Run([]string{"help"}))
	assert.Contains(t, h.out.String(), "genkey")
}

func TestGenKey(t *testing.T) {
	h := newHarness("", nil)
	require.Equal(t, exitOK, h.app.Run([]string{"genkey"}))

	key, err := cryptox.ParseMasterKey(strings.TrimSpace(h.out.String()))
	require.NoError(t, err)
	assert.Len(t, key, cryptox.MasterKeySize)
	assert.Contains(t, h.err.String(), "Store this key safely")

	h = newHarness("", nil)
	require.Equal(t, exitOK, h.app.Run([]string{"genkey", "-env"}))
	line := strings.TrimSpace(h.out.String())
	require.True(t, strings.HasPrefix(line, "ENCRYPTION_KEY="))
	_, err = cryptox.ParseMasterKey(strings.TrimPrefix(line, "ENCRYPTION_KEY="))
	require.NoError(t, err)

	h = newHarness("", nil)
	assert.Equal(t, exitUsage, h.app.Run([]string{"genkey", "-bogus"}))
}

func TestGenKey_FreshEachTime(t *testing.T) {
	a := newHarness("", nil)
	b := newHarness("", nil)
	require.Equal(t, exitOK, a.app.Run([]string{"genkey"}))
	require.Equal(t, exitOK, b.app.Run([]string{"genkey"}))
	assert.NotEqual(t, a.out.String(), b.out.String())
}

func TestGenSecret(t *testing.T) {
	h := newHarness("", nil)
	require.Equal(t, exitOK, h.app.Run([]string{"gensecret", "-env"}))
	line := strings.TrimSpace(h.out.String())
	require.True(t, strings.HasPrefix(line, "SECRET_KEY="))
	assert.Len(t, strings.TrimPrefix(line, "SECRET_KEY="), 2*signingKeyBytes)
}

func TestHashPassword_Prompt(t *testing.T) {
	stubPasswords(t, "Secret123", "Secret123")
	h := newHarness("", nil)

	require.Equal(t, exitOK, h.app.Run([]string{"hash-password"}))
	digest := strings.TrimSpace(h.out.String())
	assert.True(t, strings.HasPrefix(digest, "$argon2id$"))
	assert.True(t, h.app.Hasher.Verify("Secret123", digest))
	assert.NotContains(t, h.out.String()+h.err.String(), "Secret123")
	assert.Contains(t, h.err.String(), "Enter password: ")
	assert.Contains(t, h.err.String(), "Repeat password: ")
}

func TestHashPassword_Mismatch(t *testing.T) {
	stubPasswords(t, "Secret123", "Secret124")
	h := newHarness("", nil)

	assert.Equal(t, exitError, h.app.Run([]string{"hash-password"}))
	assert.Empty(t, h.out.String())
	assert.Contains(t, h.err.String(), "passwords do not match")
}

func TestHashPassword_ReadError(t *testing.T) {
	stubPasswords(t)
	h := newHarness("", nil)

	assert.Equal(t, exitError, h.app.Run([]string{"hash-password"}))
	assert.Contains(t, h.err.String(), "no more input")
}

func TestHashPassword_Stdin(t *testing.T) {
	h := newHarness("Secret123\n", nil)
	require.Equal(t, exitOK, h.app.Run([]string{"hash-password", "-stdin"}))
	assert.True(t, h.app.Hasher.Verify("Secret123", strings.TrimSpace(h.out.String())))

	h = newHarness("Secret123", nil)
	require.Equal(t, exitOK, h.app.Run([]string{"hash-password", "-stdin"}))

	h = newHarness("", nil)
	assert.Equal(t, exitError, h.app.Run([]string{"hash-password", "-stdin"}))
}

func TestHashPassword_WeakPassword(t *testing.T) {
	h := newHarness("password\n", nil)
	assert.Equal(t, exitError, h.app.Run([]string{"hash-password", "-stdin"}))
	assert.Empty(t, h.out.String())
	assert.Contains(t, h.err.String(), "uppercase, lowercase, and numeric")
}

func TestCheckKey(t *testing.T) {
	good := cryptox.EncodeMasterKey(cryptox.GenerateMasterKey())
	short := cryptox.EncodeMasterKey(make([]byte, 16))

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"argument", []string{"check-key", good}, nil, exitOK, "key from argument is a valid 32-byte", ""},
		{"env", []string{"check-key"}, map[string]string{"ENCRYPTION_KEY": good}, exitOK, "key from ENCRYPTION_KEY", ""},
		{"argument wins", []string{"check-key", good}, map[string]string{"ENCRYPTION_KEY": short}, exitOK, "argument", ""},
		{"short", []string{"check-key", short}, nil, exitError, "", "decodes to 16 bytes"},
		{"not base64", []string{"check-key", "%%%"}, nil, exitError, "", "not valid base64"},
		{"missing", []string{"check-key"}, nil, exitUsage, "", "ENCRYPTION_KEY is not set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness("", tt.env)
			assert.Equal(t, tt.wantCode, h.app.Run(tt.args))
			if tt.wantOut != "" {
				assert.Contains(t, h.out.String(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, h.err.String(), tt.wantErr)
			}
		})
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("abc\r\nrest"))
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}
