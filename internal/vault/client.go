// Package vault retrieves exchange API credentials from HashiCorp
// Vault, so they never have to live in config files or environment
// variables. The bot reads one KV v2 secret at startup.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"crypto-trading-bot/config"
)

// Credentials is the exchange API key pair stored in Vault.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Client wraps the HashiCorp Vault client for credential retrieval.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *Credentials
}

// NewClient builds a Vault client from configuration. A disabled
// config returns a client whose lookups fail, so callers can fall back
// to environment credentials without special-casing.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// IsEnabled reports whether Vault lookups are configured.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// FetchCredentials reads the exchange API key pair from Vault. The
// result is cached; Vault is consulted once per process unless
// InvalidateCache is called.
func (c *Client) FetchCredentials(ctx context.Context) (*Credentials, error) {
	c.mu.RLock()
	if c.cached != nil {
		cached := *c.cached
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no credentials at vault path %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at vault path %s", path)
	}

	creds := &Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("vault secret at %s is missing api_key or secret_key", path)
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	copied := *creds
	return &copied, nil
}

// InvalidateCache drops the cached credentials, forcing the next fetch
// to hit Vault again. Useful after key rotation.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Health checks the Vault connection and seal status.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
