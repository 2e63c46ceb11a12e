package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
)

type ctxKey string

const (
	userNameKey    ctxKey = "userName"
	accessTokenKey ctxKey = "accessToken"
)

// bearerToken reads the access token from the Authorization header, the
// access_token header, or the access_token query parameter. Browsers cannot
// set headers on WebSocket requests, hence the parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if h := r.Header.Get(common.AccessTokenHeaderName); h != "" {
		return h
	}
	return r.URL.Query().Get(common.AccessTokenHeaderName)
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, common.ErrorUnauthorized)
			return
		}
		user, err := auth.GetUserNameFromToken(token, s.jwtSecret)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userNameKey, user)
		ctx = context.WithValue(ctx, accessTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) string {
	u, _ := r.Context().Value(userNameKey).(string)
	return u
}

func tokenFrom(r *http.Request) string {
	t, _ := r.Context().Value(accessTokenKey).(string)
	return t
}
