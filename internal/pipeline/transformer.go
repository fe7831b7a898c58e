// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
)

// NotificationRequestTransformer is a dataflow Transformer that unmarshals and
// validates a raw message payload into a notification.Request.
// The recipient URN is validated by Request.UnmarshalJSON.
func NotificationRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*notification.Request, bool, error) {
	var req notification.Request

	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// skip=true lets the StreamingService handle the Nack/DLQ logic.
		return nil, true, fmt.Errorf("failed to unmarshal notification request from message %s: %w", msg.ID, err)
	}

	return &req, false, nil
}
