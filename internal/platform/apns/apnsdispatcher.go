// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
)

// Sender is the subset of Provider the dispatcher uses.
// This allows mocking for unit tests.
type Sender interface {
	Send(ctx context.Context, n Compiler, devices ...string) (*SendResult, error)
}

type Dispatcher struct {
	sender Sender
	topic  string // The App Bundle ID (e.g. com.tinywide.messenger)
	logger *slog.Logger
}

// NewDispatcher creates a configured APNS dispatcher and the provider behind it.
// It parses the P8 key immediately to fail fast on startup if credentials are bad.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, *Provider, error) {
	signer, err := NewTokenSigner(cfg)
	if err != nil {
		return nil, nil, err
	}
	provider := NewProvider(cfg, signer, logger)
	return newDispatcher(provider, cfg.BundleID, logger), provider, nil
}

func newDispatcher(sender Sender, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		topic:  topic,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

// Dispatch sends the notification to a batch of APNs tokens in one Send call.
// Tokens APNs reports as dead are returned for cleanup. When nothing was
// delivered and at least one request failed in transport, the error asks the
// pipeline to retry.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	tokens []string,
	content notification.Content,
	data map[string]string,
) (string, []string, error) {
	if len(tokens) == 0 {
		return "skipped: no tokens", nil, nil
	}
	log := d.logger.With("dispatch_id", uuid.NewString(), "devices", len(tokens))

	// 1. Build Payload
	builder := payload.NewPayload().
		AlertTitle(content.Title).
		AlertBody(content.Body)
	if content.Sound != "" {
		builder.Sound(content.Sound)
	}
	for k, v := range data {
		builder.Custom(k, v)
	}

	// apns-id is left unset so APNs assigns one per device.
	n := Notification{&apns2.Notification{
		Topic:    d.topic,
		Payload:  builder,
		PushType: apns2.PushTypeAlert,
	}}

	// 2. Send (one stream per token over the shared session)
	res, err := d.sender.Send(ctx, n, tokens...)
	if err != nil {
		return "", nil, fmt.Errorf("apns send failed: %w", err)
	}

	// 3. Classify failures
	var invalidTokens []string
	transportFailures := 0
	for _, f := range res.Failed {
		switch {
		case f.StatusCode == 0:
			log.Error("APNs transport failed", "token", f.Device, "err", f.Err)
			transportFailures++
		case isDeadToken(f):
			invalidTokens = append(invalidTokens, f.Device)
		default:
			// The token might be fine, but our configuration or payload is wrong.
			log.Warn("APNs rejected notification", "reason", f.Reason(), "status", f.StatusCode, "err", f.Err)
		}
	}

	if len(res.Sent) == 0 && transportFailures > 0 {
		return "", invalidTokens, fmt.Errorf("apns: %d of %d requests failed in transport", transportFailures, len(tokens))
	}

	receipt := fmt.Sprintf("success:%d invalid:%d total_fail:%d", len(res.Sent), len(invalidTokens), len(res.Failed))
	return receipt, invalidTokens, nil
}

// See: https://developer.apple.com/documentation/usernotifications/handling-notification-responses-from-apns
func isDeadToken(f Failure) bool {
	if f.StatusCode == http.StatusGone {
		return true
	}
	switch f.Reason() {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return true
	}
	return false
}
