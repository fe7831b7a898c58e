package apns

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sideshow/apns2/token"
)

// ErrMissingAuthKey is returned when neither P8 content nor a key path is configured.
var ErrMissingAuthKey = errors.New("apns: no P8 signing key configured")

// Signer produces a signed provider authentication token.
type Signer interface {
	Generate() (string, error)
}

// TokenSigner signs ES256 provider tokens with a P8 key.
type TokenSigner struct {
	key    *ecdsa.PrivateKey
	keyID  string
	teamID string
	now    func() time.Time
}

// NewTokenSigner parses the P8 key immediately to fail fast on startup if
// credentials are bad.
func NewTokenSigner(cfg Config) (*TokenSigner, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	switch {
	case cfg.P8KeyContent != "":
		key, err = token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	case cfg.P8KeyPath != "":
		key, err = token.AuthKeyFromFile(cfg.P8KeyPath)
	default:
		return nil, ErrMissingAuthKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}
	if cfg.KeyID == "" || cfg.TeamID == "" {
		return nil, fmt.Errorf("apns: key id and team id are required")
	}

	return &TokenSigner{
		key:    key,
		keyID:  cfg.KeyID,
		teamID: cfg.TeamID,
		now:    time.Now,
	}, nil
}

func (s *TokenSigner) Generate() (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.teamID,
		"iat": s.now().Unix(),
	})
	t.Header["kid"] = s.keyID

	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign provider token: %w", err)
	}
	return signed, nil
}
