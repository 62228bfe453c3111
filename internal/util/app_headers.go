package util

import (
	"net/http"
	"strings"
)

const notSet = "NOT_SET"

// AppHeaders are deployment facts echoed on every response.
type AppHeaders struct {
	Version  string
	Env      string
	Timezone string
	Language string
}

// WithAppHeaders sets X-Version, X-Env, X-Timezn and X-Language before the
// handler runs so they survive early WriteHeader calls.
func WithAppHeaders(h AppHeaders, next http.Handler) http.Handler {
	values := [][2]string{
		{"X-Version", orNotSet(h.Version)},
		{"X-Env", orNotSet(h.Env)},
		{"X-Timezn", orNotSet(h.Timezone)},
		{"X-Language", orNotSet(h.Language)},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, kv := range values {
			w.Header().Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

func orNotSet(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return notSet
	}
	return v
}
