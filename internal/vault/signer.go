package vault

import (
	"context"
	"fmt"
)

// ReceiptSigner signs canonical receipt bodies with a transit key
type ReceiptSigner struct {
	client  *Client
	keyName string
}

// NewReceiptSigner makes sure the signing key exists and returns a signer bound to it
func NewReceiptSigner(ctx context.Context, client *Client, keyName string) (*ReceiptSigner, error) {
	if keyName == "" {
		return nil, fmt.Errorf("signing key name is required")
	}
	if err := client.EnsureSigningKey(ctx, keyName); err != nil {
		return nil, err
	}
	return &ReceiptSigner{client: client, keyName: keyName}, nil
}

// Sign returns the detached signature and the key it was made with
func (s *ReceiptSigner) Sign(ctx context.Context, payload []byte) (string, string, error) {
	sig, err := s.client.Sign(ctx, s.keyName, payload)
	if err != nil {
		return "", "", err
	}
	return sig, s.keyName, nil
}

// Verify checks a receipt signature against the bound key
func (s *ReceiptSigner) Verify(ctx context.Context, payload []byte, signature string) (bool, error) {
	return s.client.Verify(ctx, s.keyName, payload, signature)
}
