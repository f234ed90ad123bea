package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// DefaultExemptPaths stay open so probes and scrapers need no token.
var DefaultExemptPaths = []string{"/health", "/metrics"}

// BearerAuthMiddleware validates "Authorization: Bearer <key>" against apiKeys.
// Empty apiKeys disables auth. exempt replaces DefaultExemptPaths when given.
func BearerAuthMiddleware(apiKeys []string, exempt ...string) func(http.Handler) http.Handler {
	var digests [][sha256.Size]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}
	if len(exempt) == 0 {
		exempt = DefaultExemptPaths
	}
	open := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		open[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			var msg string
			switch {
			case header == "":
				msg = "missing authorization header"
			case !ok:
				msg = "authorization header must use Bearer scheme"
			case !knownKey(digests, token):
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="rhokp"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// knownKey compares digests in constant time and checks every key.
func knownKey(digests [][sha256.Size]byte, token string) bool {
	d := sha256.Sum256([]byte(token))
	found := 0
	for i := range digests {
		found |= subtle.ConstantTimeCompare(d[:], digests[i][:])
	}
	return found == 1
}
