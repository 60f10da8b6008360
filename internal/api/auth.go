package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	errNoAuthHeader = errors.New("missing Authorization header")
	errBadScheme    = errors.New("Authorization header must use the Bearer scheme")
	errEmptyToken   = errors.New("missing API key")
)

// bearerToken pulls the key out of an Authorization: Bearer <key> header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	switch {
	case header == "":
		return "", errNoAuthHeader
	case !strings.HasPrefix(header, "Bearer "):
		return "", errBadScheme
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

// keyMatches compares a presented key against the configured one in constant
// time. An empty configured key rejects everything.
func keyMatches(presented, configured string) bool {
	if configured == "" || presented == "" {
		return false
	}
	if len(presented) != len(configured) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// requireAPIKey guards the tool and inspection routes.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !keyMatches(token, s.config.APIKey) {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
