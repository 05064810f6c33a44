package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
)

// PermissionReconcile grants access to statement matching and confirmation
const PermissionReconcile = "conciliacao:conciliar"

// RoleAdmin bypasses permission checks
const RoleAdmin = "admin"

// CreatePermission is the permission needed to register an obligation of
// kind, e.g. contas_pagar:criar.
func CreatePermission(kind string) string {
	return "contas_" + kind + ":criar"
}

// Claims are the bearer token claims understood by the API.
type Claims struct {
	UserID      int64    `json:"userId,omitempty"`
	Username    string   `json:"username,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	Subject     string
	Username    string
	Role        string
	Permissions []string
}

// Name identifies the principal in audit records.
func (p *Principal) Name() string {
	if p.Username != "" {
		return p.Username
	}
	return p.Subject
}

// Can reports whether the principal holds permission, admins hold all.
func (p *Principal) Can(permission string) bool {
	return p.Role == RoleAdmin || slices.Contains(p.Permissions, permission)
}

type principalKey struct{}

// PrincipalFromContext returns the principal stored by RequirePermission.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Authenticate returns middleware that verifies an HS256 bearer token signed
// with secret and stores its principal in the request context. Missing
// tokens get 401, invalid or expired tokens get 403.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, dto.UnauthorizedError("access token required"))
				return
			}

			var claims Claims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				writeAuthError(w, http.StatusForbidden, dto.ForbiddenError(msg))
				return
			}

			p := &Principal{
				Subject:     claims.Subject,
				Username:    claims.Username,
				Role:        claims.Role,
				Permissions: claims.Permissions,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Require returns middleware that rejects requests whose principal lacks
// permission. It must run after Authenticate.
func Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, dto.UnauthorizedError("access token required"))
				return
			}
			if !p.Can(permission) {
				writeAuthError(w, http.StatusForbidden, dto.ForbiddenError("permission '"+permission+"' required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission combines Authenticate and Require.
func RequirePermission(secret []byte, permission string) func(http.Handler) http.Handler {
	authenticate := Authenticate(secret)
	check := Require(permission)
	return func(next http.Handler) http.Handler {
		return authenticate(check(next))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func writeAuthError(w http.ResponseWriter, status int, apiErr dto.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
