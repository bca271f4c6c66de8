package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/tanishtirpathi/Playlistr/internal/logging"
	"github.com/tanishtirpathi/Playlistr/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ctxKey string

const ctxUser ctxKey = "user"

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// Authenticator resolves an access token to a user. It is implemented by
// service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.UserDoc, error)
}

// accessTokenFrom reads the token from the Authorization header, falling
// back to the accessToken cookie.
func accessTokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// JWTAuth rejects requests without a valid access token and puts the
// resolved user in the context.
func JWTAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r.Context(), accessTokenFrom(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUser, user)
			ctx = logging.WithUserID(ctx, user.ID.Hex())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := accessTokenFrom(r); tok != "" {
				if user, err := auth.Authenticate(r.Context(), tok); err == nil {
					ctx := context.WithValue(r.Context(), ctxUser, user)
					r = r.WithContext(logging.WithUserID(ctx, user.ID.Hex()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.UserDoc {
	u, _ := ctx.Value(ctxUser).(*models.UserDoc)
	return u
}

// userIDFromContext returns the authenticated user id, or the zero id for
// anonymous requests.
func userIDFromContext(ctx context.Context) primitive.ObjectID {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return primitive.NilObjectID
}
