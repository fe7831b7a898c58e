package apns

import (
	"sync"
	"time"
)

// tokenValidity is kept under the one hour APNs accepts so a token is
// replaced before the gateway starts rejecting it.
const tokenValidity = 3000 * time.Second

type tokenCache struct {
	signer Signer
	now    func() time.Time

	mu       sync.Mutex
	value    string
	issuedAt time.Time
}

func newTokenCache(signer Signer) *tokenCache {
	return &tokenCache{signer: signer, now: time.Now}
}

// get returns the cached token while it is younger than tokenValidity and
// signs a fresh one otherwise. Signer errors are returned unchanged.
func (c *tokenCache) get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.value != "" && now.Sub(c.issuedAt) < tokenValidity {
		return c.value, nil
	}

	value, err := c.signer.Generate()
	if err != nil {
		return "", err
	}
	c.value = value
	c.issuedAt = now
	return value, nil
}
