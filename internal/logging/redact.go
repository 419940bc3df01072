package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of any sensitive key.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"new_password":   {},
	"password_hash":  {},
	"token":          {},
	"access_token":   {},
	"authorization":  {},
	"api_key":        {},
	"plaintext":      {},
	"secret":         {},
	"secret_key":     {},
	"encryption_key": {},
	"master_key":     {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// redact returns args with the values of sensitive keys replaced. args is
// copied only when something has to change. Both "key", value pairs and
// slog.Attr entries are understood.
func redact(args []any) []any {
	out := args
	copied := false
	set := func(i int, v any) {
		if !copied {
			out = append([]any(nil), args...)
			copied = true
		}
		out[i] = v
	}

	for i := 0; i < len(args); i++ {
		switch k := args[i].(type) {
		case slog.Attr:
			if isSensitive(k.Key) {
				set(i, slog.String(k.Key, Redacted))
			}
		case string:
			if i+1 < len(args) && isSensitive(k) {
				set(i+1, Redacted)
			}
			i++
		}
	}
	return out
}
