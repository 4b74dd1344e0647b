package agent

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/config"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/db"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/identity"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/player"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/progress"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/queue"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/registry"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/relay"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/session"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/statusapi"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/token"
)

// Options carries optional collaborators a host application can inject. All
// fields may be nil; the agent then runs headless (no playback surface, no
// user-visible notifications).
type Options struct {
	LocalSurface  player.PlaybackSurface
	BridgeSurface player.PlaybackSurface
	Resolver      session.SourceResolver
	Browser       session.BrowseProvider
	Notifier      session.Notifier
	Logger        *log.Logger
}

// Agent wires the whole sync stack: identity, writer election, the hub
// connection, session state, resume persistence, and the local status API.
type Agent struct {
	cfg      config.Config
	identity protocol.DeviceIdentity
	logger   *log.Logger

	relay      *relay.Relay
	hub        *hub.Client
	tokens     *token.Provider
	session    *session.Session
	registry   *registry.Registry
	queue      *queue.Store
	dispatcher *player.Dispatcher
	selector   *player.Selector
	database   *sql.DB
	pruner     *progress.Pruner
	router     http.Handler

	listenDone chan struct{}
}

// New builds an agent from configuration. When no hub is configured the agent
// still serves the status API and local playback; everything sync-related
// stays disabled.
func New(cfg config.Config, opts Options) (*Agent, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	deviceIdentity, err := identity.Load(cfg.StateDir, cfg.DeviceName, cfg.DeviceClass)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		cfg:      cfg,
		identity: deviceIdentity,
		logger:   logger,
	}

	agent.selector = player.NewSelector(opts.LocalSurface, opts.BridgeSurface)
	agent.dispatcher = player.NewDispatcher(agent.selector, logger)
	agent.registry = registry.New(deviceIdentity.ID, logger)

	if cfg.SyncEnabled() {
		if err := agent.initSync(cfg, opts); err != nil {
			return nil, err
		}
	} else {
		// No hub configured: the session and queue still exist so the status
		// API and host integrations have stable views, but every send fails
		// with a not-connected error.
		agent.queue = queue.NewStore(disabledConn{}, deviceIdentity.ID, logger)
		agent.session = session.New(session.Options{
			Identity:   deviceIdentity,
			Conn:       disabledConn{},
			Registry:   agent.registry,
			Queue:      agent.queue,
			Dispatcher: agent.dispatcher,
			Surfaces:   agent.selector,
			Notifier:   opts.Notifier,
			Logger:     logger,
		})
	}

	database, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	agent.database = database
	repo := progress.NewRepository(database)

	agent.session.AttachReconciler(progress.NewReconciler(repo, logger))
	retention := time.Duration(cfg.ResumeRetentionDays) * 24 * time.Hour
	agent.pruner = progress.NewPruner(repo, retention, logger)

	deps := statusapi.Deps{
		Identity:    deviceIdentity,
		Hub:         agent.hubStatus(),
		Registry:    agent.registry,
		Queue:       agent.queue,
		Session:     agent.session,
		Resume:      repo,
		SyncEnabled: cfg.SyncEnabled(),
	}
	if agent.hub != nil {
		deps.Browser = agent.hub
	}
	if agent.tokens != nil {
		deps.Auth = agent.tokens
	}
	agent.router = statusapi.NewRouter(deps)

	return agent, nil
}

func (a *Agent) initSync(cfg config.Config, opts Options) error {
	tokens, err := token.NewProvider(token.Config{
		Endpoint:     cfg.AuthTokenURL,
		Lifetime:     time.Duration(cfg.TokenLifetimeSec) * time.Second,
		RefreshEarly: time.Duration(cfg.TokenRefreshEarlySec) * time.Second,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	a.tokens = tokens

	rel, err := relay.New(cfg.RelayLockPort, cfg.RelayMulticastPort, a.logger)
	if err != nil {
		return err
	}
	a.relay = rel

	client, err := hub.NewClient(hub.Options{
		URL:           cfg.HubURL,
		Identity:      a.identity,
		Tokens:        tokens,
		DialTimeout:   time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		BackoffBase:   time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
		BackoffMax:    time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
		BrowseTimeout: time.Duration(cfg.BrowseTimeoutMs) * time.Millisecond,
		Logger:        a.logger,
		OnStatus: func(status hub.Status) {
			if a.session != nil {
				a.session.HandleConnectionStatus(status)
			}
		},
		OnFrame: func(raw []byte) {
			if rel.Role() != relay.RoleWriter {
				return
			}
			if err := rel.Publish(raw); err != nil {
				a.logger.Printf("relay publish failed: %v", err)
			}
		},
	})
	if err != nil {
		return err
	}
	a.hub = client

	a.queue = queue.NewStore(client, a.identity.ID, a.logger)
	a.session = session.New(session.Options{
		Identity:        a.identity,
		Conn:            client,
		Registry:        a.registry,
		Queue:           a.queue,
		Dispatcher:      a.dispatcher,
		Surfaces:        a.selector,
		Resolver:        opts.Resolver,
		Browser:         opts.Browser,
		Notifier:        opts.Notifier,
		Logger:          a.logger,
		TransferTimeout: time.Duration(cfg.TransferTimeoutMs) * time.Millisecond,
	})
	client.SetHandler(a.session.HandleMessage)
	return nil
}

func (a *Agent) hubStatus() statusapi.HubStatus {
	if a.hub != nil {
		return a.hub
	}
	return disabledHub{}
}

type disabledHub struct{}

func (disabledHub) Status() hub.Status { return hub.StatusDisconnected }

// disabledConn stands in for the hub connection when no hub is configured.
type disabledConn struct{}

func (disabledConn) Send(*protocol.ClientMessage) error { return hub.ErrNotConnected }
func (disabledConn) Status() hub.Status                 { return hub.StatusDisconnected }

// Handler returns the local status API.
func (a *Agent) Handler() http.Handler {
	return a.router
}

// Session exposes the session for host-application integrations.
func (a *Agent) Session() *session.Session {
	return a.session
}

// Start elects the relay role and brings up the hub connection (writer) or
// the relay listen loop (listener). A Connect failure on the writer is not
// fatal: the client keeps retrying in the background.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.pruner.Start(); err != nil {
		return err
	}
	if a.hub == nil {
		a.logger.Printf("sync disabled: no hub configured")
		return nil
	}

	switch a.relay.Elect() {
	case relay.RoleWriter:
		if err := a.hub.Connect(ctx); err != nil {
			a.logger.Printf("initial hub connect failed: %v", err)
		}
	case relay.RoleListener:
		a.listenDone = make(chan struct{})
		go a.listenLoop()
	}
	return nil
}

// listenLoop consumes frames the writer process republishes. Mirrored frames
// keep this process's registry, queue, and control state in step, while the
// writer alone acts on commands and transfers.
func (a *Agent) listenLoop() {
	defer close(a.listenDone)
	err := a.relay.Listen(func(frame []byte) {
		msg, err := protocol.Parse(frame)
		if err != nil {
			return
		}
		a.session.HandleMirrored(msg)
	})
	if err != nil {
		a.logger.Printf("relay listen ended: %v", err)
	}
}

// Shutdown stops background work and closes the database.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.pruner.Stop()
	if a.hub != nil {
		a.hub.Disconnect()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.relay != nil {
		a.relay.Close()
		if a.listenDone != nil {
			select {
			case <-a.listenDone:
			case <-ctx.Done():
			}
		}
	}
	return a.database.Close()
}
