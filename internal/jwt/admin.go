package jwt

import (
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// AdminVerifier validates the HS256 bearer tokens that guard administrative
// endpoints such as cache invalidation. Tokens are issued out of band from
// the shared admin secret.
type AdminVerifier struct {
	secret []byte
}

// NewAdminVerifier creates a verifier over the shared admin secret. An
// empty secret disables admin access entirely.
func NewAdminVerifier(secret string) *AdminVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &AdminVerifier{}
	}
	return &AdminVerifier{secret: []byte(secret)}
}

// Enabled reports whether admin access is configured.
func (v *AdminVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks the token signature and expiry and returns its claims.
func (v *AdminVerifier) Verify(token string) (*gojwt.Claims, error) {
	if !v.Enabled() {
		return nil, fmt.Errorf("admin access disabled")
	}
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parse admin token: %w", err)
	}
	var claims gojwt.Claims
	if err := parsed.Claims(v.secret, &claims); err != nil {
		return nil, fmt.Errorf("verify admin token: %w", err)
	}
	if err := claims.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		return nil, fmt.Errorf("validate admin token: %w", err)
	}
	return &claims, nil
}

// SignAdminToken mints a short-lived admin token. Used by operator tooling
// and tests.
func SignAdminToken(secret string, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: []byte(secret)},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("build signer: %w", err)
	}
	now := time.Now()
	claims := gojwt.Claims{
		Subject:  "admin",
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return token, nil
}
