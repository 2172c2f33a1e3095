package proxy

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller derived from the gateway's identity
// assertion. It satisfies the role callback used by user and role rules.
type Identity struct {
	User  string
	Roles []string
}

// Username returns the authenticated username.
func (i *Identity) Username() string {
	return i.User
}

// HasRole reports whether the caller carries the given role.
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// IdentityConfig controls how the identity assertion is verified.
type IdentityConfig struct {
	// Secret is the HMAC key shared with the authenticating gateway.
	// Empty disables identity extraction entirely.
	Secret string

	// UserClaim is the JWT claim carrying the username, "sub" by default.
	UserClaim string
}

// IdentityFromRequest extracts the caller identity from the Authorization
// header. An absent header is an anonymous caller, not an error: user and
// role rules then simply never match. A present but invalid assertion is
// an error and must deny the request.
func IdentityFromRequest(r *http.Request, cfg *IdentityConfig) (*Identity, error) {
	if cfg == nil || cfg.Secret == "" {
		return nil, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid identity assertion: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid identity assertion")
	}

	userClaim := cfg.UserClaim
	if userClaim == "" {
		userClaim = "sub"
	}

	user, _ := claims[userClaim].(string)
	if user == "" {
		return nil, fmt.Errorf("identity assertion has no %q claim", userClaim)
	}

	identity := &Identity{User: user}
	if rawRoles, ok := claims["roles"].([]any); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				identity.Roles = append(identity.Roles, role)
			}
		}
	}

	return identity, nil
}
