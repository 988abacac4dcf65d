// Package auth validates bearer tokens and admin tokens. Tokens are issued
// elsewhere; this package only verifies them.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

// SecretSource resolves named credentials. secrets.Provider satisfies it.
type SecretSource interface {
	Get(ctx context.Context, name string) (string, error)
}

// Claims are the access token claims. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator checks HS256 access tokens against a signing key resolved per call,
// so a rotated key takes effect once the secret cache is invalidated.
type Validator struct {
	secrets  SecretSource
	keyName  string
	issuer   string
	audience string
	leeway   time.Duration
}

type ValidatorOption func(*Validator)

func WithIssuer(issuer string) ValidatorOption {
	return func(v *Validator) { v.issuer = issuer }
}

func WithAudience(audience string) ValidatorOption {
	return func(v *Validator) { v.audience = audience }
}

func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.leeway = d }
}

func NewValidator(secrets SecretSource, keyName string, opts ...ValidatorOption) *Validator {
	v := &Validator{secrets: secrets, keyName: keyName, leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateToken returns the user ID carried in a valid token. Any failure other
// than an unavailable signing key is CodeUnauthorized.
func (v *Validator) ValidateToken(ctx context.Context, token string) (id.UserID, error) {
	key, err := v.secrets.Get(ctx, v.keyName)
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "signing key unavailable")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return userID, nil
}

// TokenValidator is what RequireAuth needs from a Validator.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (id.UserID, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the request's user.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			userID, err := validator.ValidateToken(ctx, strings.TrimSpace(token))
			if err != nil {
				httputil.LogFailure(ctx, logger, "unauthorized access - invalid token", err)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}

// HeaderAdminToken carries the operator token on admin routes.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken checks X-Admin-Token against the bcrypt hash stored under
// hashName and marks the request as admin.
func RequireAdminToken(secrets SecretSource, hashName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := r.Header.Get(HeaderAdminToken)
			if token == "" {
				logger.WarnContext(ctx, "admin token missing", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			hash, err := secrets.Get(ctx, hashName)
			if err != nil {
				logger.ErrorContext(ctx, "admin token hash unavailable",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "admin token hash unavailable"))
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				logger.WarnContext(ctx, "admin token mismatch", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdmin(ctx)))
		})
	}
}
