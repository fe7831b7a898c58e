package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-apns-gateway/internal/api"
	"github.com/tinywideclouds/go-apns-gateway/internal/pipeline"
	"github.com/tinywideclouds/go-apns-gateway/notificationservice/config"
	"github.com/tinywideclouds/go-apns-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-apns-gateway/pkg/notification"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Gateway is the long-lived connection to the push authority.
type Gateway interface {
	Shutdown() error
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[notification.Request]
	gateway         Gateway
	logger          *slog.Logger
}

// New assembles the service. gateway may be nil when the dispatcher owns no
// connection (as in tests).
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	dispatcher dispatch.Dispatcher,
	gateway Gateway,
	tokenStore dispatch.TokenStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(dispatcher, tokenStore, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.NotificationRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API (Device Registration)
	tokenAPI := api.NewTokenAPI(tokenStore, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/register/apns", tokenAPI.RegisterAPNS)
	handle("POST /api/v1/unregister/apns", tokenAPI.UnregisterAPNS)

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		gateway:         gateway,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops intake first, then the HTTP server, then closes the APNs session.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	if w.gateway != nil {
		if err := w.gateway.Shutdown(); err != nil {
			w.logger.Error("APNs session shutdown failed.", "err", err)
			finalErr = err
		}
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
