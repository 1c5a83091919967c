package pkce

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// EndpointsFromIssuer fills the endpoint configuration from an OIDC issuer's
// discovery document (/.well-known/openid-configuration). The revocation
// endpoint is optional in the document; when absent, logout skips the
// network revoke and only clears local state.
func EndpointsFromIssuer(ctx context.Context, issuer string) (Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, errors.Wrapf(err, "[EndpointsFromIssuer] discovery for %q", issuer)
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return Endpoints{}, errors.Wrap(err, "[EndpointsFromIssuer] decode discovery document")
	}

	endpoint := provider.Endpoint()
	return Endpoints{
		AuthorizationURL: endpoint.AuthURL,
		TokenURL:         endpoint.TokenURL,
		RevokeTokenURL:   extra.RevocationEndpoint,
	}, nil
}
