package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/types"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Operator types carried in tokens
const (
	TypeClaimant = "CLAIMANT"
	TypeAdmin    = "ADMIN"
	TypeInsurer  = "INSURER"
	TypeSystem   = "SYSTEM"
)

// User represents the authenticated operator from JWT claims
type User struct {
	ID           types.ID `json:"sub"`
	Name         string   `json:"name"`
	OperatorType string   `json:"operator_type"`
	EnterpriseID types.ID `json:"enterprise_id,omitempty"`
	Roles        []string `json:"roles"`
}

// Claims extends JWT claims with claim-processing data
type Claims struct {
	jwt.RegisteredClaims
	Name         string   `json:"name"`
	OperatorType string   `json:"operator_type"`
	EnterpriseID string   `json:"enterprise_id,omitempty"`
	Roles        []string `json:"roles"`
}

// Middleware creates JWT authentication middleware. Tokens are HS256 signed
// with the configured secret; the issuer is checked when one is configured.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			}, opts...)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user := &User{
				ID:           types.ID(claims.Subject),
				Name:         claims.Name,
				OperatorType: claims.OperatorType,
				EnterpriseID: types.ID(claims.EnterpriseID),
				Roles:        claims.Roles,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueToken signs a token for user. It backs operator tooling and tests.
func IssueToken(cfg config.AuthConfig, user User, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = user.ID.String()
	if cfg.Issuer != "" {
		claims.Issuer = cfg.Issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: claims,
		Name:             user.Name,
		OperatorType:     user.OperatorType,
		EnterpriseID:     user.EnterpriseID.String(),
		Roles:            user.Roles,
	})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// RequireRoles creates middleware that requires specific roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !hasAnyRole(user.Roles, roles) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HasRole checks if user has a specific role
func (u *User) HasRole(role string) bool {
	return hasAnyRole(u.Roles, []string{role})
}

// IsAdmin checks if user is an admin
func (u *User) IsAdmin() bool {
	return u.OperatorType == TypeAdmin || u.HasRole("admin")
}

// CanReadAuditTrail reports whether the user may read claim audit trails.
// Claimants read their own claims through the claim API, not here.
func (u *User) CanReadAuditTrail() bool {
	switch u.OperatorType {
	case TypeAdmin, TypeInsurer, TypeSystem:
		return true
	}
	return u.HasRole("claims_auditor")
}

func hasAnyRole(userRoles, requiredRoles []string) bool {
	for _, required := range requiredRoles {
		for _, role := range userRoles {
			if role == required {
				return true
			}
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
