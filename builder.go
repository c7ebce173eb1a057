package monauth

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/darelisme/monauth/bridge"
	"github.com/darelisme/monauth/device"
	"github.com/darelisme/monauth/store"
	"github.com/darelisme/monauth/verify"
)

// Builder assembles a [Coordinator]. Configure it during initialization and
// treat the built coordinator as the single application-scoped handle.
type Builder struct {
	config     Config
	local      store.Store
	cookies    store.Store
	httpClient *http.Client
	logger     *log.Logger
	env        device.Environment
	navigator  Navigator
	now        func() time.Time
	built      bool
}

// New starts a builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithLocalStore sets the durable client-only persistence scope.
// Defaults to an in-process [store.Memory].
func (b *Builder) WithLocalStore(s store.Store) *Builder {
	b.local = s
	return b
}

// WithCookieStore sets the persistence scope visible to outbound requests.
// Defaults to an in-process [store.Memory].
func (b *Builder) WithCookieStore(s store.Store) *Builder {
	b.cookies = s
	return b
}

// WithHTTPClient sets the outbound transport. The default client carries
// the configured request timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the coordinator logger. Silent by default.
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEnvironment sets the device environment inspector.
func (b *Builder) WithEnvironment(env device.Environment) *Builder {
	b.env = env
	return b
}

// WithNavigator sets the navigation handoff target used by logout and the
// login flow.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and assembles the coordinator. A
// builder can only be used once.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	local := b.local
	if local == nil {
		local = store.NewMemory()
	}
	cookies := b.cookies
	if cookies == nil {
		cookies = store.NewMemory()
	}
	client := b.httpClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTP.RequestTimeout}
	}
	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	deviceProvider := device.NewProvider(cookies, b.env, cfg.Session.AppVersion)

	coordinator := &Coordinator{
		config:    cfg,
		local:     local,
		cookies:   cookies,
		verifier:  verify.New(cfg.Endpoints.AuthBase, client),
		bridge:    bridge.New(cfg.Endpoints.APIBase, client, deviceProvider.ProfileHeader),
		device:    deviceProvider,
		navigator: b.navigator,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,

		state:         initialState(),
		checkLimiter:  rate.NewLimiter(rate.Every(cfg.Check.Cooldown), 1),
		bridgeLimiter: rate.NewLimiter(rate.Every(cfg.Bridge.Cooldown), 1),
	}
	coordinator.breaker = coordinator.newBreaker()

	b.built = true
	return coordinator, nil
}
