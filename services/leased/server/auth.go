package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"leasechain/crypto"
)

// Roles a token may carry besides its subject.
const (
	RoleRelayer = "relayer"
	RoleAdmin   = "admin"
)

const defaultClockSkew = 2 * time.Minute

var (
	errMissingToken      = errors.New("missing bearer token")
	errInvalidToken      = errors.New("invalid token")
	errInsufficientRoles = errors.New("insufficient role")
	errSenderMismatch    = errors.New("sender does not match the authenticated subject")
)

// AuthConfig selects how bearer tokens are checked.
type AuthConfig struct {
	Enabled   bool
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Principal is the authenticated caller.
type Principal struct {
	Subject crypto.Address
	Roles   []string
}

// HasRole reports whether the caller holds role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

// PrincipalFrom returns the caller a request was authenticated as.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator checks HS256 bearer tokens. The subject claim is the
// caller's bech32 address and the roles claim lists its roles.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = defaultClockSkew
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.Secret)), logger: logger}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.cfg.Enabled
}

// Middleware rejects requests without a valid token with 401 and tokens
// missing one of the roles with 403. When checks are disabled requests pass
// through unauthenticated.
func (a *Authenticator) Middleware(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			raw := extractBearer(r.Header.Get("Authorization"))
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			principal, err := a.Authenticate(raw)
			if err != nil {
				a.logger.Warn("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				writeJSONError(w, http.StatusUnauthorized, errInvalidToken)
				return
			}
			for _, role := range roles {
				if !principal.HasRole(role) {
					writeJSONError(w, http.StatusForbidden, fmt.Errorf("%w: %s required", errInsufficientRoles, role))
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
		})
	}
}

// Authenticate parses and validates a token.
func (a *Authenticator) Authenticate(raw string) (Principal, error) {
	if len(a.secret) == 0 {
		return Principal{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errors.New("token invalid")
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return Principal{}, err
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(subject))
	if err != nil {
		return Principal{}, fmt.Errorf("subject: %w", err)
	}
	return Principal{Subject: addr, Roles: extractRoles(claims["roles"])}, nil
}

// sender resolves who a customer request acts for. With token checks on it
// is the authenticated subject and a differing claimed address is refused.
func (a *Authenticator) sender(r *http.Request, claimed crypto.Address) (crypto.Address, error) {
	if !a.Enabled() {
		return claimed, nil
	}
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		return crypto.Address{}, errMissingToken
	}
	if !claimed.IsZero() && claimed != principal.Subject {
		return crypto.Address{}, fmt.Errorf("%w: %s", errSenderMismatch, claimed)
	}
	return principal.Subject, nil
}

func extractRoles(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func extractBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
