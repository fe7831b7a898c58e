package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-apns-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
)

// NewProcessor creates the logic that resolves a recipient's devices and
// fans the notification out to them through the APNs dispatcher.
func NewProcessor(
	dispatcher dispatch.Dispatcher,
	tokenStore dispatch.TokenStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[notification.Request] {

	return func(ctx context.Context, original messagepipeline.Message, request *notification.Request) error {
		procLogger := logger.With(
			"recipient_id", request.RecipientID.String(),
			"pubsub_msg_id", original.ID,
		)

		// 1. Lookup
		tokens, err := tokenStore.Fetch(ctx, request.RecipientID)
		if err != nil {
			procLogger.Error("Failed to fetch device tokens", "err", err)
			return err
		}
		if len(tokens) == 0 {
			procLogger.Info("No devices registered for user; dropping notification.")
			return nil
		}

		// 2. Dispatch
		receipt, invalidTokens, err := dispatcher.Dispatch(ctx, tokens, request.Content, request.DataPayload)

		// 3. Self-Healing, even when the dispatch asks for a retry
		if len(invalidTokens) > 0 {
			procLogger.Info("Cleaning up invalid APNs tokens", "count", len(invalidTokens))
			for _, t := range invalidTokens {
				if err := tokenStore.UnregisterDevice(ctx, request.RecipientID, t); err != nil {
					procLogger.Warn("Failed to delete APNs token", "token", t, "err", err)
				}
			}
		}

		if err != nil {
			procLogger.Error("APNs Dispatch failed", "err", err)
			return err // Retryable
		}
		procLogger.Info("APNs Dispatched", "receipt", receipt)
		return nil
	}
}
