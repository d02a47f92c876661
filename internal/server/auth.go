package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a capability level carried by a credential. Service can append;
// admin can additionally read. The two are distinct capabilities, not
// attribute checks scattered through handlers.
type Role string

const (
	RoleService Role = "service"
	RoleAdmin   Role = "admin"
)

var errUnauthorized = errors.New("missing or invalid credential")

// Claims is the token payload: a role plus standard registered claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates bearer tokens and the static service API key.
type Auth struct {
	secret     []byte
	serviceKey string
}

// NewAuth creates the authenticator. serviceKey may be empty, which
// disables the API-key path and leaves bearer tokens only.
func NewAuth(secret []byte, serviceKey string) *Auth {
	return &Auth{secret: secret, serviceKey: serviceKey}
}

// GenerateToken mints a capability token for operators and producers.
func (a *Auth) GenerateToken(role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "securewatch",
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// authenticate resolves the request to a role, or errUnauthorized.
func (a *Auth) authenticate(r *http.Request) (Role, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(*Claims); ok {
				switch Role(claims.Role) {
				case RoleService, RoleAdmin:
					return Role(claims.Role), nil
				}
			}
		}
		return "", errUnauthorized
	}

	// Static API key grants the service (ingest) capability only.
	if key := r.Header.Get("X-API-Key"); key != "" && a.serviceKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.serviceKey)) == 1 {
			return RoleService, nil
		}
	}

	return "", errUnauthorized
}

// requireService admits service and admin credentials.
func (a *Auth) requireService(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid service credential")
			return
		}
		if role != RoleService && role != RoleAdmin {
			writeError(w, http.StatusForbidden, "service capability required")
			return
		}
		next(w, r)
	}
}

// requireAdmin admits admin credentials only. An under-privileged read
// gets an error body, never partial data.
func (a *Auth) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin credential")
			return
		}
		if role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin capability required")
			return
		}
		next(w, r)
	}
}
