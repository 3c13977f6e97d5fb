package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
)

// TokenValidator is the part of the token service the gate depends on.
type TokenValidator interface {
	Validate(raw string, now time.Time) (Identity, error)
}

// ErrUnknownAccount is returned by an AccountResolver when the token subject
// no longer maps to an active account.
var ErrUnknownAccount = errors.New("unknown or inactive account")

// AccountResolver loads the current identity of a token subject. The returned
// role replaces the one carried by the token.
type AccountResolver interface {
	ResolveIdentity(ctx context.Context, accountID string) (Identity, error)
}

// Gate resolves bearer tokens into request identities.
type Gate struct {
	tokens   TokenValidator
	accounts AccountResolver
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func NewGate(tokens TokenValidator, accounts AccountResolver, now func() time.Time, logger *zap.SugaredLogger) *Gate {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Gate{tokens: tokens, accounts: accounts, now: now, logger: logger}
}

// Require rejects requests without a valid bearer token. Every failure reason
// produces the same response.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.resolve(r)
		switch {
		case err == nil:
		case errors.Is(err, errNoToken), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownAccount):
			if g.logger != nil && !errors.Is(err, errNoToken) {
				g.logger.Debugw("bearer token rejected", "path", r.URL.Path, "err", err)
			}
			apperror.Write(w, r, g.logger, apperror.Unauthenticated("Could not validate credentials"))
			return
		default:
			apperror.Write(w, r, g.logger, apperror.Wrap(err, apperror.KindInternal, "Internal server error"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional attaches an identity when a valid token is present and otherwise
// lets the request through anonymously.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := g.resolve(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

var errNoToken = errors.New("no bearer token")

func (g *Gate) resolve(r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Identity{}, errNoToken
	}
	id, err := g.tokens.Validate(raw, g.now())
	if err != nil || g.accounts == nil {
		return id, err
	}
	return g.accounts.ResolveIdentity(r.Context(), id.AccountID)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole must run after Gate.Require.
func RequireRole(logger *zap.SugaredLogger, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				apperror.Write(w, r, logger, apperror.Unauthenticated(""))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			apperror.Write(w, r, logger, apperror.Forbidden("Insufficient permissions"))
		})
	}
}

// CheckOwner fails with Forbidden unless id owns the resource.
func CheckOwner(id Identity, ownerID string) error {
	if id.AccountID == "" || id.AccountID != ownerID {
		return apperror.Forbidden("You do not have permission to modify this resource")
	}
	return nil
}
