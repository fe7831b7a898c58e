package apns

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Provider sends notifications to APNs over one long-lived HTTP/2 session.
// It is safe for concurrent use.
type Provider struct {
	session    *sessionManager
	tokens     *tokenCache
	maxStreams int
	logger     *slog.Logger
}

// NewProvider creates a provider for the authority selected by cfg.Production.
// No connection is made until the first Send.
func NewProvider(cfg Config, signer Signer, logger *slog.Logger) *Provider {
	logger = logger.With("component", "APNSProvider")
	session := newSessionManager(cfg.Authority(), nil, cfg.pingInterval(), cfg.requestTimeout(), logger)
	return newProvider(cfg, signer, session, logger)
}

func newProvider(cfg Config, signer Signer, session *sessionManager, logger *slog.Logger) *Provider {
	return &Provider{
		session:    session,
		tokens:     newTokenCache(signer),
		maxStreams: cfg.maxConcurrentStreams(),
		logger:     logger,
	}
}

// Send delivers n to every device and reports each device as sent or failed.
// Per-device failures, including connection failures, are part of the result.
// An error is returned only when nothing could be attempted: no devices, a
// token that could not be signed, or a notification that could not be compiled.
func (p *Provider) Send(ctx context.Context, n Compiler, devices ...string) (*SendResult, error) {
	if len(devices) == 0 {
		return nil, ErrNoDeviceTokens
	}

	cc, connErr := p.session.ensureConnected(ctx)

	// One token per call, even if its window closes while requests are in flight.
	token, err := p.tokens.get()
	if err != nil {
		return nil, fmt.Errorf("generate provider token: %w", err)
	}

	body, err := n.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile notification: %w", err)
	}
	headers := n.Headers()

	outcomes := make([]Outcome, len(devices))
	if connErr != nil {
		p.logger.Warn("APNs session unavailable", "err", connErr, "devices", len(devices))
		for i, device := range devices {
			outcomes[i] = Outcome{Device: device, Kind: TransportFailed, Err: connErr}
		}
		return partition(outcomes), nil
	}

	var g errgroup.Group
	g.SetLimit(p.maxStreams)
	for i, device := range devices {
		g.Go(func() error {
			outcomes[i] = p.session.execute(ctx, cc, request{
				device:  device,
				token:   token,
				headers: headers,
				body:    body,
			})
			return nil
		})
	}
	_ = g.Wait()

	res := partition(outcomes)
	p.logger.Debug("APNs send complete", "sent", len(res.Sent), "failed", len(res.Failed))
	return res, nil
}

// Shutdown cancels the keepalive and closes the session. The next Send
// establishes a new one.
func (p *Provider) Shutdown() error {
	return p.session.shutdown()
}
