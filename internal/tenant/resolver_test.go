package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

func TestCanonicalFoldsKnownAliases(t *testing.T) {
	resolver := tenant.NewResolver(tenant.DefaultAliases())

	require.Equal(t, "Koach", resolver.Canonical("koach"))
	require.Equal(t, "Koach", resolver.Canonical("KOACH"))
	require.Equal(t, "Koach", resolver.Canonical("  Koach  "))
}

func TestCanonicalPassesUnknownTenantsThrough(t *testing.T) {
	resolver := tenant.NewResolver(tenant.DefaultAliases())

	require.Equal(t, "MetroCab", resolver.Canonical("MetroCab"))
	require.Equal(t, "", resolver.Canonical("   "))
}

func TestParseAliasesMergesOverDefaults(t *testing.T) {
	aliases := tenant.ParseAliases([]string{"metro=MetroCab", "KOACH=KoachCab", "bad-pair", "=x", "y="})

	resolver := tenant.NewResolver(aliases)
	require.Equal(t, "MetroCab", resolver.Canonical("Metro"))
	require.Equal(t, "KoachCab", resolver.Canonical("koach"))
}
