package authclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authclient/clock"
	"github.com/MrEthical07/authclient/internal/signal"
	"github.com/MrEthical07/authclient/middleware"
	"github.com/MrEthical07/authclient/storage"
	"github.com/MrEthical07/authclient/transport"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Manager. It is single use.
type Builder struct {
	config Config

	navigator  Navigator
	transport  Transport
	httpClient *http.Client
	redis      redis.UniversalClient
	backend    storage.Backend
	store      storage.Store
	clock      clock.Clock
	logger     *slog.Logger
	eventSink  EventSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithNavigator sets the router. Defaults to a fresh History.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithTransport replaces the HTTP transport client entirely. Endpoint,
// tenant and HTTP settings of the config are then ignored.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithHTTPClient sets the base client wrapped by the bearer middleware.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithRedis sets the client backing session-scoped storage.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackend overrides the backend chosen from Config.Storage. The adapter
// still probes it and falls back to memory on failure.
func (b *Builder) WithBackend(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithStore bypasses the adapter and uses store directly.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires storage, transport and
// middleware, then hydrates the session from storage.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := resolveConfig(cloneConfig(b.config))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := b.clock
	if clk == nil {
		clk = clock.Real{}
	}
	nav := b.navigator
	if nav == nil {
		nav = NewHistory("/")
	}

	metrics := NewMetrics(cfg.Metrics)
	events := newEventDispatcher(cfg.Events, b.eventSink)

	// -------- STORAGE --------
	var (
		store  storage.Store
		closer io.Closer
	)
	if b.store != nil {
		store = b.store
		if c, ok := b.store.(io.Closer); ok {
			closer = c
		}
	} else {
		backend := b.backend
		if backend == nil {
			backend = b.openBackend(cfg, logger)
		}
		adapter := storage.NewAdapter(cfg.Storage, backend, storage.Options{
			Logger:  logger,
			Timeout: cfg.StorageBackends.Timeout,
			OnFallback: func(kind storage.Kind, err error) {
				metrics.Inc(MetricStorageFallback)
				events.Emit(context.Background(), SessionEvent{
					Timestamp: clk.Now(),
					Type:      EventStorageFallback,
					Error:     err.Error(),
					Metadata:  map[string]string{"storage": string(kind)},
				})
			},
		})
		store = adapter
		closer = adapter
	}
	tokens := storage.NewTokens(store, cfg.StorageKeys, logger)

	// -------- TRANSPORT --------
	base := b.httpClient
	if base == nil {
		base = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	authorized := middleware.WrapClient(base, tokens, cfg.APIURL)

	api := b.transport
	if api == nil {
		api = transport.New(transport.Config{
			BaseURL:        cfg.APIURL,
			Endpoints:      cfg.Endpoints,
			TenantStrategy: cfg.Tenant.Strategy,
			TenantID:       cfg.Tenant.ID,
			TenantHeader:   cfg.Tenant.Header,
			TenantResolver: cfg.Tenant.Resolver,
			HTTPClient:     authorized,
			Observe: func(name string, elapsed time.Duration, err error) {
				if op, ok := ParseOperation(name); ok {
					metrics.ObserveCall(op, elapsed, err)
				} else {
					metrics.Observe(MetricTransportLatency, elapsed)
					if err != nil {
						metrics.Inc(MetricTransportFailure)
					}
				}
				if err != nil {
					logger.Debug("auth api call failed", "op", name, "elapsed", elapsed, "error", err)
				}
			},
		})
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		clock:      clk,
		nav:        nav,
		api:        api,
		tokens:     tokens,
		closer:     closer,
		authorized: authorized,
		metrics:    metrics,
		events:     events,
		state:      signal.NewCell(Session{rolesDisabled: !cfg.Features.Roles}),
	}
	m.hydrate()

	return m, nil
}

// openBackend returns nil when the configured backend cannot be opened; the
// adapter then falls back to memory.
func (b *Builder) openBackend(cfg Config, logger *slog.Logger) storage.Backend {
	switch cfg.Storage {
	case storage.KindLocal:
		path := cfg.StorageBackends.SQLitePath
		if path == "" {
			p, err := storage.DefaultSQLitePath("authclient")
			if err != nil {
				logger.Warn("cannot resolve durable storage path", "error", err)
				return nil
			}
			path = p
		}
		db, err := storage.OpenSQLite(path)
		if err != nil {
			logger.Warn("cannot open durable storage", "path", path, "error", err)
			return nil
		}
		return db
	case storage.KindSession:
		if b.redis == nil {
			return nil
		}
		return storage.NewRedis(b.redis, storage.RedisOptions{
			Prefix: cfg.StorageBackends.RedisPrefix,
			TTL:    cfg.StorageBackends.SessionTTL,
		})
	default:
		return nil
	}
}
