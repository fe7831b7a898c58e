package api

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-apns-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

type TokenAPI struct {
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger,
	}
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// RegisterAPNS stores the caller's APNs device token.
func (api *TokenAPI) RegisterAPNS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := api.user(w, r)
	if !ok {
		return
	}

	var req DeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}
	// APNs device tokens are hex encoded; anything else would end up in the request path.
	if _, err := hex.DecodeString(req.Token); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "malformed token")
		return
	}

	if err := api.Store.RegisterDevice(ctx, userURN, req.Token); err != nil {
		api.Logger.Error("failed to register apns device", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("RegisterAPNS: device registered", "user", userURN.String())

	w.WriteHeader(http.StatusNoContent)
}

// UnregisterAPNS removes a device token. It always answers 204 once the
// request is understood.
func (api *TokenAPI) UnregisterAPNS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := api.user(w, r)
	if !ok {
		return
	}

	var req DeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := api.Store.UnregisterDevice(ctx, userURN, req.Token); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister
		api.Logger.Warn("failed to unregister apns device", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *TokenAPI) user(w http.ResponseWriter, r *http.Request) (urn.URN, bool) {
	var none urn.URN
	userID, ok := middleware.GetUserHandleFromContext(r.Context())
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return none, false
	}
	userURN, err := urn.Parse(userID)
	if err != nil {
		api.Logger.Warn("authenticated user id is not a URN", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return none, false
	}
	return userURN, true
}
