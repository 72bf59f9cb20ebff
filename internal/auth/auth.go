package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"narrative-safety/internal/config"
	"narrative-safety/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidKey   = errors.New("invalid ECDSA key")
)

// JWTClaims represents the claims in a bearer token issued by the identity service
type JWTClaims struct {
	UserID uint     `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the caller identity used by handlers
func (c *JWTClaims) Principal() models.Principal {
	return models.Principal{UserID: c.UserID, Email: c.Email, Roles: c.Roles}
}

// Service verifies ES256 bearer tokens. Tokens are minted elsewhere; this
// service only holds the public half of the key.
type Service struct {
	publicKey *ecdsa.PublicKey
	parser    *jwt.Parser
}

// NewService creates a verifier from the configured PEM key
func NewService(cfg *config.JWTConfig) (*Service, error) {
	publicKey, err := ParsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Service{publicKey: publicKey, parser: jwt.NewParser(opts...)}, nil
}

// ParsePublicKey accepts a PEM (or base64 encoded PEM) public key. A private
// key is accepted too and reduced to its public half, which keeps local
// development on a single key file.
func ParsePublicKey(raw string) (*ecdsa.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: not PEM and not base64", ErrInvalidKey)
		}
		raw = string(decoded)
	}

	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an ECDSA key", ErrInvalidKey)
		}
		return ecKey, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &key.PublicKey, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an ECDSA key", ErrInvalidKey)
		}
		return &ecKey.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PEM type %q", ErrInvalidKey, block.Type)
	}
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
