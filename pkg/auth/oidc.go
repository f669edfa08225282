package auth

import (
	"context"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/shishobooks/shisho/pkg/catalog/users"
	"github.com/shishobooks/shisho/pkg/models"
)

// OIDCProviderConfig is one `[providers.<id>]` entry from the OIDC
// configuration TOML (§4.9).
type OIDCProviderConfig struct {
	IssuerURL    string `toml:"issuer_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type registeredProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
}

// ProviderCache resolves and memoizes OIDC clients by provider id. A plain
// map under a read/write lock: entries are immutable once written, so
// eviction is never required (cardinality is the number of configured
// providers), per §9.
type ProviderCache struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
	configs   map[string]OIDCProviderConfig
	redirect  string // callback URL shared by every provider; the provider id travels in the session's OIDCSecrets
}

func NewProviderCache(configs map[string]OIDCProviderConfig, redirectURL string) *ProviderCache {
	return &ProviderCache{
		providers: make(map[string]*registeredProvider),
		configs:   configs,
		redirect:  redirectURL,
	}
}

func (c *ProviderCache) resolve(ctx context.Context, providerID string) (*registeredProvider, error) {
	c.mu.RLock()
	rp, ok := c.providers[providerID]
	c.mu.RUnlock()
	if ok {
		return rp, nil
	}

	cfg, ok := c.configs[providerID]
	if !ok {
		return nil, errors.Errorf("unknown OIDC provider %q", providerID)
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "discovering OIDC provider")
	}

	rp = &registeredProvider{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  c.redirect,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}

	c.mu.Lock()
	c.providers[providerID] = rp
	c.mu.Unlock()
	return rp, nil
}

// BeginLogin builds the provider's authorization URL and the OIDCSecrets
// that must be stashed in the session until the callback arrives.
func (c *ProviderCache) BeginLogin(ctx context.Context, providerID string) (redirectURL string, secrets *OIDCSecrets, err error) {
	rp, err := c.resolve(ctx, providerID)
	if err != nil {
		return "", nil, err
	}

	state := randomID()
	nonce := randomID()
	verifier := oauth2.GenerateVerifier()

	url := rp.oauth2.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(verifier))
	return url, &OIDCSecrets{Provider: providerID, CSRFToken: state, Nonce: nonce, PKCEVerifier: verifier}, nil
}

// idTokenClaims is the subset of the ID token's claims this module cares
// about; UserClaim per §4.9's glossary.
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Sub   string `json:"sub"`
}

// CompleteLogin exchanges the authorization code, verifies the ID token
// (nonce + access-token hash binding), and joins the resulting email to a
// local user. An unknown email is a 401, not an account-provisioning
// event - this module does not auto-create users from OIDC claims.
func (c *ProviderCache) CompleteLogin(ctx context.Context, usersSvc *users.Service, secrets *OIDCSecrets, state, code string) (*models.User, error) {
	if state != secrets.CSRFToken {
		return nil, errors.New("OIDC state does not match")
	}

	rp, err := c.resolve(ctx, secrets.Provider)
	if err != nil {
		return nil, err
	}

	token, err := rp.oauth2.Exchange(ctx, code, oauth2.VerifierOption(secrets.PKCEVerifier))
	if err != nil {
		return nil, errors.Wrap(err, "exchanging OIDC authorization code")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("OIDC token response missing id_token")
	}

	idToken, err := rp.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "verifying OIDC id_token")
	}
	if idToken.Nonce != secrets.Nonce {
		return nil, errors.New("OIDC nonce does not match")
	}
	if err := idToken.VerifyAccessToken(token.AccessToken); err != nil {
		return nil, errors.Wrap(err, "verifying OIDC access token binding")
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "decoding OIDC id_token claims")
	}

	user, err := usersSvc.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, errors.Wrap(errInvalidCredentials, "no local account for OIDC email")
	}
	return user, nil
}
