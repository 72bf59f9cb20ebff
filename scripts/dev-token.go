package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"narrative-safety/internal/auth"
)

// Generates an ECDSA P-256 key pair for local development and mints a bearer
// token the API accepts. Production tokens come from the identity service.
func main() {
	keyFile := flag.String("key", "jwt-private-key.pem", "private key file, created when missing")
	userID := flag.Uint("user", 1, "user id claim")
	email := flag.String("email", "dev@example.com", "email claim")
	roles := flag.String("roles", "user", "comma separated roles (user, reviewer, admin)")
	issuer := flag.String("issuer", "", "issuer claim, must match JWT_ISSUER when set")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	privateKey, created, err := loadOrCreateKey(*keyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare key: %v\n", err)
		os.Exit(1)
	}

	if created {
		publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal public key: %v\n", err)
			os.Exit(1)
		}
		publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes})

		fmt.Println("Generated ECDSA P-256 key pair for JWT verification.")
		fmt.Printf("✓ Private key saved to: %s\n", *keyFile)
		fmt.Println("\nAdd this to your .env file (as a single line with \\n for newlines):")
		fmt.Println("----------------------------------------")
		fmt.Printf("JWT_PUBLIC_KEY=%s\n\n", strings.ReplaceAll(string(publicKeyPEM), "\n", "\\n"))
	}

	now := time.Now()
	claims := auth.JWTClaims{
		UserID: *userID,
		Email:  *email,
		Roles:  strings.Split(*roles, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    *issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(privateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Authorization: Bearer " + token)
}

func loadOrCreateKey(path string) (*ecdsa.PrivateKey, bool, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		block, _ := pem.Decode(raw)
		if block == nil || block.Type != "EC PRIVATE KEY" {
			return nil, false, fmt.Errorf("%s does not contain an EC PRIVATE KEY block", path)
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		return key, false, err
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, false, err
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, false, err
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, privateKeyPEM, 0600); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
