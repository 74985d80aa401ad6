package pos

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

// Credentials are the connection secrets for one provider.
type Credentials struct {
	BaseURL     string
	Token       string
	Environment string
}

// CredentialSource resolves the credentials for a provider.
type CredentialSource interface {
	Credentials(provider enums.POSProvider) (Credentials, error)
}

type configCredentials struct {
	pos    config.POSConfig
	square config.SquareConfig
}

// NewConfigCredentials reads provider credentials from the loaded configuration.
func NewConfigCredentials(cfg *config.Config) CredentialSource {
	if cfg == nil {
		return configCredentials{}
	}
	return configCredentials{pos: cfg.POS, square: cfg.Square}
}

func (c configCredentials) Credentials(provider enums.POSProvider) (Credentials, error) {
	switch provider {
	case enums.POSProviderREST:
		base := strings.TrimSpace(c.pos.RESTBaseURL)
		token := strings.TrimSpace(c.pos.RESTToken)
		if base == "" || token == "" {
			return Credentials{}, configurationError(provider, "base url and token are required")
		}
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Credentials{}, configurationError(provider, fmt.Sprintf("invalid base url %q", base))
		}
		return Credentials{BaseURL: strings.TrimRight(base, "/"), Token: token}, nil
	case enums.POSProviderSquare:
		token := strings.TrimSpace(c.square.AccessToken)
		if token == "" {
			return Credentials{}, configurationError(provider, "access token is required")
		}
		env := c.square.Environment()
		if env != "sandbox" && env != "production" {
			return Credentials{}, configurationError(provider, fmt.Sprintf("invalid environment %q", env))
		}
		return Credentials{Token: token, Environment: env}, nil
	default:
		return Credentials{}, configurationError(provider, "no credentials configured")
	}
}

func configurationError(provider enums.POSProvider, msg string) error {
	return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("pos %s: %s", provider, msg))
}
