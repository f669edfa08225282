package auth

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type oidcConfigFile struct {
	Providers map[string]OIDCProviderConfig `toml:"providers"`
}

// LoadProviderConfigs reads the `[providers.<id>]` OIDC TOML file described
// in §4.9 and §6 into the map NewProviderCache expects.
func LoadProviderConfigs(path string) (map[string]OIDCProviderConfig, error) {
	if path == "" {
		return map[string]OIDCProviderConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading OIDC config")
	}

	var file oidcConfigFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing OIDC config")
	}
	if file.Providers == nil {
		file.Providers = map[string]OIDCProviderConfig{}
	}
	return file.Providers, nil
}
