package statusapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/api"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/apperrors"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/progress"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/queue"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/registry"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/session"
)

// HubStatus is the slice of the hub client the status API reads.
type HubStatus interface {
	Status() hub.Status
}

// Deps are the views and session handles the status API exposes.
type Deps struct {
	Identity    protocol.DeviceIdentity
	Hub         HubStatus
	Registry    *registry.Registry
	Queue       *queue.Store
	Session     *session.Session
	Resume      *progress.Repository
	Browser     Browser
	Auth        Auth
	SyncEnabled bool
}

// NewRouter builds the local status router: read views for debugging plus a
// small set of action routes desktop integrations drive the session with.
func NewRouter(deps Deps) chi.Router {
	router := chi.NewRouter()
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)

	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"deviceId":  deps.Identity.ID,
			"hubStatus": deps.Hub.Status(),
		})
	}))

	router.Method(http.MethodGet, "/v1/devices", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteList(w, "/v1/devices", deps.Registry.Devices())
	}))

	router.Method(http.MethodGet, "/v1/queue", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteList(w, "/v1/queue", deps.Queue.Items())
	}))

	router.Method(http.MethodGet, "/v1/session", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{
			"identity":        deps.Identity,
			"hubStatus":       deps.Hub.Status(),
			"control":         deps.Session.ControlState(),
			"transferPending": deps.Session.TransferPending(),
		})
	}))

	router.Method(http.MethodGet, "/v1/resume", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 1000 {
				return apperrors.NewValidationError("limit must be an integer between 1 and 1000", nil)
			}
			limit = parsed
		}
		if deps.Resume == nil {
			return api.WriteList(w, "/v1/resume", []progress.ResumePosition{})
		}
		positions, err := deps.Resume.List(limit)
		if err != nil {
			return apperrors.NewInternalError("Failed to load resume positions")
		}
		return api.WriteList(w, "/v1/resume", positions)
	}))

	router.Method(http.MethodGet, "/v1/resume/{content_key}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if deps.Resume == nil {
			return apperrors.NewNotFoundError("No resume store configured", nil)
		}
		key := chi.URLParam(r, "content_key")
		position, err := deps.Resume.Get(key)
		if err != nil {
			return apperrors.NewInternalError("Failed to load resume position")
		}
		if position == nil {
			return apperrors.NewNotFoundError("No resume position for "+key, nil)
		}
		return api.WriteJSON(w, http.StatusOK, position)
	}))

	registerActions(router, deps)

	return router
}
