package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Dispatcher defines the contract for a component that can send notifications
// to a push gateway.
type Dispatcher interface {
	// Dispatch sends the notification content to a batch of device tokens.
	// It returns a short receipt and the tokens the gateway reported as dead.
	Dispatch(ctx context.Context, tokens []string, content notification.Content, data map[string]string) (string, []string, error)
}

// TokenStore defines the contract for managing user device tokens.
// It allows the service to remember "where" to send notifications for a user.
type TokenStore interface {
	// RegisterDevice adds or updates a device token for a specific user.
	// It should handle deduplication (e.g., upsert).
	RegisterDevice(ctx context.Context, user urn.URN, token string) error

	// UnregisterDevice removes a device token. Removing an unknown token is not an error.
	UnregisterDevice(ctx context.Context, user urn.URN, token string) error

	// Fetch retrieves all active device tokens for a specific user.
	Fetch(ctx context.Context, user urn.URN) ([]string, error)
}
