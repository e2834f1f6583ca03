package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/jwt"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := jwt.SignAdminToken("shared-admin-secret", time.Minute)
	require.NoError(t, err)

	verifier := jwt.NewAdminVerifier("shared-admin-secret")
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Subject)
}

func TestAdminTokenWrongSecret(t *testing.T) {
	token, err := jwt.SignAdminToken("shared-admin-secret", time.Minute)
	require.NoError(t, err)

	verifier := jwt.NewAdminVerifier("other-secret")
	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestAdminTokenExpired(t *testing.T) {
	token, err := jwt.SignAdminToken("shared-admin-secret", -time.Minute)
	require.NoError(t, err)

	verifier := jwt.NewAdminVerifier("shared-admin-secret")
	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	verifier := jwt.NewAdminVerifier("  ")
	require.False(t, verifier.Enabled())

	_, err := verifier.Verify("anything")
	require.Error(t, err)
}
