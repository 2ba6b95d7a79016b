package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/mishramart/internal/domain/auth"
)

// RequireUser authenticates the shopper by the session cookie, or a Bearer
// token for non-browser clients, and stores the session in the context.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}

		s, err := h.sessions.FindSession(r.Context(), auth.Hash(h.pepper, token))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				err = errors.Wrap(err, "find session")
			}
			writeError(w, r, err)
			return
		}
		if s.Expired(h.now()) {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), s)))
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// RequireAdmin authenticates the api_key header. The key is hashed, looked
// up, and compared to the stored hash in constant time; it must carry the
// admin scope.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}

		hash := auth.HashBytes(h.pepper, key)
		info, err := h.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		if !info.HasScope(auth.ScopeAdmin) {
			writeError(w, r, auth.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// currentUser returns the session stored by RequireUser.
func currentUser(r *http.Request) *auth.Session {
	s, _ := auth.UserFrom(r.Context())
	return s
}
