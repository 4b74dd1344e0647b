package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/api"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/apperrors"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Browser is the slice of the hub client the browse endpoint needs.
type Browser interface {
	Browse(ctx context.Context, targetID string, query protocol.BrowseQuery) ([]protocol.BrowseResult, error)
}

// Auth reports whether sync is paused waiting for re-authentication.
type Auth interface {
	AuthRequired() bool
}

type commandRequest struct {
	TargetID string           `json:"targetId"`
	Command  protocol.Command `json:"command"`
}

type transferRequest struct {
	TargetID string                   `json:"targetId"`
	Transfer protocol.TransferPayload `json:"transfer"`
}

type browseRequest struct {
	TargetID string               `json:"targetId"`
	Query    protocol.BrowseQuery `json:"query"`
}

type targetRequest struct {
	TargetID string `json:"targetId"`
}

type notifyRequest struct {
	TargetID string `json:"targetId"`
	Message  string `json:"message"`
}

// registerActions wires the mutation endpoints desktop integrations drive the
// sync session with. Every outbound action still flows through the one hub
// connection; these routes only translate HTTP into session calls.
func registerActions(router chi.Router, deps Deps) {
	router.Method(http.MethodPost, "/v1/command", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req commandRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if !deps.SyncEnabled {
			return apperrors.NewSyncDisabledError()
		}
		if req.TargetID == "" || req.Command.Action == "" {
			return apperrors.NewValidationError("targetId and command.action are required", nil)
		}
		if err := deps.Session.SendCommand(req.TargetID, req.Command); err != nil {
			return mapSendError(deps, err)
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "sent"})
	}))

	router.Method(http.MethodPost, "/v1/transfer", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req transferRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if !deps.SyncEnabled {
			return apperrors.NewSyncDisabledError()
		}
		if req.TargetID == "" {
			return apperrors.NewValidationError("targetId is required", nil)
		}
		if !deps.Session.Transfer(req.TargetID, req.Transfer) {
			if deps.Hub.Status() != hub.StatusConnected {
				return notConnectedError(deps)
			}
			return apperrors.NewTargetUnavailableError(req.TargetID)
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"pending": true})
	}))

	router.Method(http.MethodPost, "/v1/browse", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req browseRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if !deps.SyncEnabled || deps.Browser == nil {
			return apperrors.NewSyncDisabledError()
		}
		if req.TargetID == "" {
			return apperrors.NewValidationError("targetId is required", nil)
		}
		results, err := deps.Browser.Browse(r.Context(), req.TargetID, req.Query)
		if err != nil {
			switch {
			case errors.Is(err, hub.ErrBrowseTimeout):
				return apperrors.NewRequestTimeoutError("browse request timed out")
			case errors.Is(err, hub.ErrNotConnected):
				return notConnectedError(deps)
			default:
				return apperrors.NewTransportError(err.Error())
			}
		}
		return api.WriteList(w, "/v1/browse", results)
	}))

	router.Method(http.MethodPut, "/v1/session/target", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req targetRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		// Clearing the target must always succeed, connected or not; local
		// playback is never blocked by sync connectivity.
		deps.Session.SetActiveTarget(req.TargetID)
		return api.WriteJSON(w, http.StatusOK, deps.Session.ControlState())
	}))

	router.Method(http.MethodPost, "/v1/notify", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req notifyRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if !deps.SyncEnabled {
			return apperrors.NewSyncDisabledError()
		}
		if req.TargetID == "" || req.Message == "" {
			return apperrors.NewValidationError("targetId and message are required", nil)
		}
		if err := deps.Session.NotifyDevice(req.TargetID, req.Message); err != nil {
			return mapSendError(deps, err)
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "sent"})
	}))
}

func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apperrors.NewProtocolError("malformed request body")
	}
	return nil
}

// mapSendError translates session send failures into the error taxonomy.
func mapSendError(deps Deps, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, hub.ErrNotConnected) {
		return notConnectedError(deps)
	}
	return apperrors.NewTransportError(err.Error())
}

// notConnectedError distinguishes "down, reconnecting" from "paused until the
// user re-authenticates".
func notConnectedError(deps Deps) error {
	if deps.Auth != nil && deps.Auth.AuthRequired() {
		return apperrors.NewAuthError()
	}
	return apperrors.NewNotConnectedError()
}
