// Package auth verifies bearer tokens issued by the external user-service.
// Tokens are RS256 JWTs; signing keys are resolved dynamically from the
// provider's published JWK Set, keyed by the token's kid header.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for every verification failure. Callers never
// learn whether the token was missing, malformed, expired, or signed with an
// unknown key.
var ErrUnauthenticated = errors.New("unauthenticated")

const jwtLeeway = 30 * time.Second

// Claims is the verified payload of a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier validates bearer credentials against the identity provider's JWK Set.
type Verifier struct {
	jwks     keyfunc.Keyfunc
	audience string
	logger   *slog.Logger
}

// Options configures a Verifier.
type Options struct {
	// JWKSURL is the identity provider's JWK Set endpoint.
	JWKSURL string
	// Audience is the aud value tokens must assert.
	Audience string
	// ClientTimeout bounds each JWKS fetch.
	ClientTimeout time.Duration
	// RefreshInterval controls background key refresh.
	RefreshInterval time.Duration
}

// NewVerifier creates a Verifier whose keys are fetched from opts.JWKSURL and
// refreshed in the background. Startup does not fail if the endpoint is briefly
// unreachable; verification fails until keys can be resolved.
func NewVerifier(opts Options, logger *slog.Logger) (*Verifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: opts.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("jwks refresh failed", "url", opts.JWKSURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return &Verifier{
		jwks:     k,
		audience: opts.Audience,
		logger:   logger.With("component", "auth"),
	}, nil
}

// NewVerifierWithKeyfunc creates a Verifier with a caller-supplied keyfunc.
// Used in tests to supply a static JWK Set.
func NewVerifierWithKeyfunc(kf keyfunc.Keyfunc, audience string, logger *slog.Logger) *Verifier {
	return &Verifier{jwks: kf, audience: audience, logger: logger.With("component", "auth")}
}

// Verify extracts the bearer token from an Authorization header value and
// validates its signature, audience, and expiry. It returns the verified
// claims, or ErrUnauthenticated on any failure.
func (v *Verifier) Verify(ctx context.Context, authHeader string) (*Claims, error) {
	tokenString, ok := bearerToken(authHeader)
	if !ok {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtLeeway),
	)
	if err != nil || !token.Valid {
		v.logger.Debug("token verification failed", "error", err)
		return nil, ErrUnauthenticated
	}

	if claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// bearerToken parses an "Authorization: Bearer <token>" header value.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
