// Package keytool implements operator commands for the key material the
// server needs: master encryption keys, token signing keys and password
// digests.
package keytool

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/fatih/color"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	signingKeyBytes = 32
)

const usage = `usage: keytool <command> [flags]

commands:
  genkey         print a new base64 master key for ENCRYPTION_KEY
  gensecret      print a new random signing key for SECRET_KEY
  hash-password  prompt for a password and print its digest
  check-key      validate a master key (argument or ENCRYPTION_KEY)
`

var errPasswordMismatch = errors.New("passwords do not match")

// App runs keytool commands. Output goes to Out; prompts, warnings and
// errors go to Err.
type App struct {
	Out    io.Writer
	Err    io.Writer
	In     io.Reader
	Getenv func(string) string
	Hasher *cryptox.PasswordHasher

	warn *color.Color
	fail *color.Color
	ok   *color.Color
}

func NewApp(out, errOut io.Writer, in io.Reader, getenv func(string) string) *App {
	return &App{
		Out:    out,
		Err:    errOut,
		In:     in,
		Getenv: getenv,
		Hasher: cryptox.NewPasswordHasher(cryptox.DefaultArgon2Params),
		warn:   color.New(color.FgYellow, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		ok:     color.New(color.FgGreen),
	}
}

// Run executes the command in args (without the program name) and returns
// the process exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.Err, usage)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "genkey":
		return a.genKey(rest)
	case "gensecret":
		return a.genSecret(rest)
	case "hash-password":
		return a.hashPassword(rest)
	case "check-key":
		return a.checkKey(rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.Out, usage)
		return exitOK
	default:
		a.fail.Fprintf(a.Err, "unknown command %q\n", cmd)
		fmt.Fprint(a.Err, usage)
		return exitUsage
	}
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Err)
	return fs
}

func (a *App) genKey(args []string) int {
	fs := a.flagSet("genkey")
	asEnv := fs.Bool("env", false, "print as ENCRYPTION_KEY=<key>")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	key := cryptox.GenerateMasterKey()
	encoded := cryptox.EncodeMasterKey(key)
	common.WipeByteArray(key)

	if *asEnv {
		fmt.Fprintf(a.Out, "ENCRYPTION_KEY=%s\n", encoded)
	} else {
		fmt.Fprintln(a.Out, encoded)
	}
	a.warn.Fprintln(a.Err, "Store this key safely: stored API keys cannot be decrypted without it.")
	return exitOK
}

func (a *App) genSecret(args []string) int {
	fs := a.flagSet("gensecret")
	asEnv := fs.Bool("env", false, "print as SECRET_KEY=<key>")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	secret, err := common.MakeRandHexString(signingKeyBytes)
	if err != nil {
		a.fail.Fprintf(a.Err, "generate secret: %v\n", err)
		return exitError
	}

	if *asEnv {
		fmt.Fprintf(a.Out, "SECRET_KEY=%s\n", secret)
	} else {
		fmt.Fprintln(a.Out, secret)
	}
	return exitOK
}

func (a *App) hashPassword(args []string) int {
	fs := a.flagSet("hash-password")
	fromStdin := fs.Bool("stdin", false, "read the password from standard input instead of prompting")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	password, err := a.readNewPassword(*fromStdin)
	if err != nil {
		a.fail.Fprintf(a.Err, "%v\n", err)
		return exitError
	}

	if ok, reason := cryptox.MeetsStrengthPolicy(password); !ok {
		a.fail.Fprintln(a.Err, reason)
		return exitError
	}

	digest, err := a.Hasher.Hash(password)
	if err != nil {
		a.fail.Fprintf(a.Err, "hash password: %v\n", err)
		return exitError
	}

	fmt.Fprintln(a.Out, digest)
	return exitOK
}

func (a *App) readNewPassword(fromStdin bool) (string, error) {
	if fromStdin {
		return readLine(a.In)
	}

	first, err := getPassword(a.Err, "Enter password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := getPassword(a.Err, "Repeat password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

func (a *App) checkKey(args []string) int {
	fs := a.flagSet("check-key")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	encoded := fs.Arg(0)
	source := "argument"
	if encoded == "" {
		encoded = a.Getenv("ENCRYPTION_KEY")
		source = "ENCRYPTION_KEY"
	}
	if encoded == "" {
		a.fail.Fprintln(a.Err, "no key given and ENCRYPTION_KEY is not set")
		return exitUsage
	}

	key, err := cryptox.ParseMasterKey(encoded)
	if err != nil {
		a.fail.Fprintf(a.Err, "invalid key from %s: %v\n", source, err)
		return exitError
	}
	defer common.WipeByteArray(key)

	if err := selfTest(key); err != nil {
		a.fail.Fprintf(a.Err, "key from %s failed self-test: %v\n", source, err)
		return exitError
	}

	a.ok.Fprintf(a.Out, "OK: key from %s is a valid %d-byte master key\n", source, len(key))
	return exitOK
}

// selfTest encrypts and decrypts a sample value with key.
func selfTest(key []byte) error {
	c, err := cryptox.NewSecretCipher(key)
	if err != nil {
		return err
	}
	const sample = "keytool-self-test"
	token, err := c.Encrypt(sample)
	if err != nil {
		return err
	}
	got, err := c.Decrypt(token)
	if err != nil {
		return err
	}
	if got != sample {
		return errors.New("round trip mismatch")
	}
	return nil
}
