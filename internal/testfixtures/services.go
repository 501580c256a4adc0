package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/desk-booking/internal/bootstrap"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Tokens      *IDGenerator
	Logger      *slog.Logger
	configure   []func(*config.Config)
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Tokens:      NewIDGenerator("token"),
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Tokens == nil {
		factory.Tokens = NewIDGenerator("token")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithConfig adjusts the configuration the services are built from, for
// example the booking range cap.
func WithConfig(fn func(*config.Config)) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.configure = append(factory.configure, fn)
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services bundles the engine wired over one store.
type Services = bootstrap.Services

// NewServices wires every service over store with the factory's clock and
// identifiers. Session tokens come from their own "token-<n>" sequence.
func (f *ServiceFactory) NewServices(store persistence.Store) Services {
	cfg := config.Default()
	cfg.Session.Secret = "test-secret"
	cfg.Session.TTL = time.Hour
	cfg.Booking.CacheSize = 64
	cfg.Booking.CacheTTL = time.Minute
	for _, fn := range f.configure {
		fn(&cfg)
	}

	return bootstrap.NewServices(store, cfg, f.Logger, bootstrap.Options{
		IDGenerator:    f.IDGenerator.NextFunc(),
		TokenGenerator: f.Tokens.NextFunc(),
		Now:            f.Clock.NowFunc(),
	})
}
