// Package notification contains the public domain models for the
// notification service.
package notification

import (
	"encoding/json"
	"fmt"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Content is the user-visible part of a notification.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// Request asks for Content to be pushed to every device registered for
// RecipientID. Devices are resolved by the service, not the publisher.
type Request struct {
	RecipientID urn.URN
	Content     Content
	DataPayload map[string]string
}

type requestJSON struct {
	RecipientID string            `json:"recipient_id"`
	Content     Content           `json:"content"`
	DataPayload map[string]string `json:"data,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON{
		RecipientID: r.RecipientID.String(),
		Content:     r.Content,
		DataPayload: r.DataPayload,
	})
}

// UnmarshalJSON validates the recipient URN while decoding.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw requestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.RecipientID == "" {
		return fmt.Errorf("recipient_id is required")
	}
	recipient, err := urn.Parse(raw.RecipientID)
	if err != nil {
		return fmt.Errorf("invalid recipient_id %q: %w", raw.RecipientID, err)
	}
	r.RecipientID = recipient
	r.Content = raw.Content
	r.DataPayload = raw.DataPayload
	return nil
}
