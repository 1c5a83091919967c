package pkce_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/pkce"
	"github.com/jrsteele09/go-auth-client/pkce/pkcefakes"
)

func TestS256ChallengeKnownVector(t *testing.T) {
	// Appendix B of RFC 7636
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", pkce.S256ChallengeFromVerifier(verifier))
}

func TestGeneratedStateUsesUnreservedCharacters(t *testing.T) {
	f := setupFixture(t, "https://auth.example.com/token", nil)
	require.NoError(t, f.client.RequestAuthorizationCode())

	state := f.persistedState(t)
	require.Len(t, state.StateParam, pkce.RecommendedStateLength)
	for _, r := range state.StateParam {
		require.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~", string(r))
	}
	require.Len(t, state.CodeVerifier, 43)
}

func TestCorruptPersistedStateIsDiscarded(t *testing.T) {
	storage := pkcefakes.NewFakeStorage()
	require.NoError(t, storage.Set(pkce.StorageKey, "{not json"))

	client, err := pkce.NewClient(testOptions("https://auth.example.com/token"),
		pkcefakes.NewFakeNotifier(), storage, pkcefakes.NewFakeNavigator(testRedirectURL))
	require.NoError(t, err)
	require.False(t, client.IsAuthorized())
}
