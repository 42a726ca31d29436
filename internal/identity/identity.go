package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"media-converter/internal/logging"

	"github.com/golang-jwt/jwt/v5"
)

// Tier is the admission class of a caller.
type Tier string

const (
	// TierGuest is an anonymous caller.
	TierGuest Tier = "guest"
	// TierUser is an authenticated caller.
	TierUser Tier = "user"
	// TierAdmin is an elevated, trusted caller.
	TierAdmin Tier = "admin"
)

// CookieName is the cookie carrying the identity token.
const CookieName = "auth_token"

// ParseTier converts a stored role name into a Tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierGuest:
		return TierGuest, true
	case TierUser:
		return TierUser, true
	case TierAdmin:
		return TierAdmin, true
	default:
		return "", false
	}
}

// Identity is the resolved caller of one request.
type Identity struct {
	// Key is the quota key: "user:<id>" or "ip:<address>".
	Key string `json:"key"`
	// UserID is empty for guests.
	UserID string `json:"userId,omitempty"`
	Tier   Tier   `json:"tier"`
}

// Authenticated reports whether the caller presented a valid token.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Guest returns the identity of an anonymous caller at addr.
func Guest(addr string) Identity {
	return Identity{Key: "ip:" + addr, Tier: TierGuest}
}

// User returns the identity of an authenticated principal.
func User(id string, tier Tier) Identity {
	if tier != TierAdmin {
		tier = TierUser
	}
	return Identity{Key: "user:" + id, UserID: id, Tier: tier}
}

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	// ErrNoToken is returned by Verify for an empty token.
	ErrNoToken = errors.New("no token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Resolver verifies identity tokens and resolves requests to identities.
type Resolver struct {
	secret     []byte
	trustProxy bool
}

// NewResolver creates a Resolver. An empty secret disables token
// verification and every caller resolves as a guest.
func NewResolver(secret string, trustProxy bool) *Resolver {
	return &Resolver{secret: []byte(secret), trustProxy: trustProxy}
}

// Enabled reports whether tokens can be verified.
func (r *Resolver) Enabled() bool {
	return len(r.secret) > 0
}

// Verify checks a token's signature and expiry and returns the identity it
// names.
func (r *Resolver) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}
	if !r.Enabled() {
		return Identity{}, fmt.Errorf("%w: verification disabled", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	tier, ok := ParseTier(claims.Role)
	if !ok || tier == TierGuest {
		return Identity{}, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return User(claims.Subject, tier), nil
}

// Resolve returns the identity for req. Missing or invalid tokens yield a
// guest identity rather than an error.
func (r *Resolver) Resolve(req *http.Request) Identity {
	token := tokenFromRequest(req)
	if token == "" {
		return Guest(r.ClientAddr(req))
	}

	id, err := r.Verify(token)
	if err != nil {
		logging.Debug("Treating caller as guest: %v", err)
		return Guest(r.ClientAddr(req))
	}
	return id
}

// ClientAddr returns the caller's network address. Forwarding headers are
// only honoured when the resolver trusts its proxy.
func (r *Resolver) ClientAddr(req *http.Request) string {
	if r.trustProxy {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := req.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func tokenFromRequest(req *http.Request) string {
	if c, err := req.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := req.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Sign issues a token for userID. It is used by operator tooling and tests.
func Sign(secret, userID string, tier Tier, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	now := time.Now()
	claims := Claims{
		Role: string(tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Middleware resolves the caller once and stores it in the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
	})
}
