package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
)

// Client wraps HashiCorp Vault API
type Client struct {
	client       *api.Client
	transitMount string
}

// Config holds Vault configuration
type Config struct {
	Address      string
	Token        string
	TransitMount string
}

// NewClient creates a new Vault client
func NewClient(cfg *Config) (*Client, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	vaultClient := &Client{
		client:       client,
		transitMount: cfg.TransitMount,
	}

	if err := vaultClient.initTransitEngine(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize transit engine: %w", err)
	}

	return vaultClient, nil
}

// initTransitEngine enables the transit secrets engine if not already enabled
func (c *Client) initTransitEngine(ctx context.Context) error {
	mounts, err := c.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	if _, exists := mounts[c.transitMount+"/"]; exists {
		return nil
	}

	err = c.client.Sys().MountWithContext(ctx, c.transitMount, &api.MountInput{
		Type:        "transit",
		Description: "Transit signing for constitutional receipts",
		Config: api.MountConfigInput{
			DefaultLeaseTTL: "768h",
			MaxLeaseTTL:     "8760h",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mount transit engine: %w", err)
	}

	return nil
}

// EnsureSigningKey creates a non-exportable ed25519 key if it does not exist yet
func (c *Client) EnsureSigningKey(ctx context.Context, keyName string) error {
	path := fmt.Sprintf("%s/keys/%s", c.transitMount, keyName)

	existing, err := c.client.Logical().ReadWithContext(ctx, path)
	if err == nil && existing != nil {
		return nil
	}

	data := map[string]interface{}{
		"type":       "ed25519",
		"exportable": false,
	}
	if _, err := c.client.Logical().WriteWithContext(ctx, path, data); err != nil {
		return fmt.Errorf("failed to create key %s: %w", keyName, err)
	}
	return nil
}

// Sign signs payload with the named transit key and returns the vault-formatted signature
func (c *Client) Sign(ctx context.Context, keyName string, payload []byte) (string, error) {
	path := fmt.Sprintf("%s/sign/%s", c.transitMount, keyName)

	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"input": base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("empty sign response")
	}

	signature, ok := secret.Data["signature"].(string)
	if !ok {
		return "", fmt.Errorf("invalid signature response")
	}
	return signature, nil
}

// Verify checks a signature produced by Sign
func (c *Client) Verify(ctx context.Context, keyName string, payload []byte, signature string) (bool, error) {
	path := fmt.Sprintf("%s/verify/%s", c.transitMount, keyName)

	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"input":     base64.StdEncoding.EncodeToString(payload),
		"signature": signature,
	})
	if err != nil {
		return false, fmt.Errorf("failed to verify: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("empty verify response")
	}

	valid, ok := secret.Data["valid"].(bool)
	if !ok {
		return false, fmt.Errorf("invalid verify response")
	}
	return valid, nil
}

// Health checks Vault health status
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}
