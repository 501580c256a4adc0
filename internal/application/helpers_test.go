package application_test

import (
	"errors"
	"testing"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
	"github.com/example/desk-booking/internal/testfixtures"
)

// engine bundles services wired over one backend with the seeded world.
type engine struct {
	testfixtures.Services
	World testfixtures.World
	Store persistence.Store
	Clock *testfixtures.Clock
}

func newEngine(t *testing.T, backend testfixtures.Backend, opts ...testfixtures.ServiceFactoryOption) engine {
	t.Helper()

	store := backend.Open(t)
	world := testfixtures.SeedWorld(t, store)
	factory := testfixtures.NewServiceFactory(opts...)
	return engine{
		Services: factory.NewServices(store),
		World:    world,
		Store:    store,
		Clock:    factory.Clock,
	}
}

// forEachBackend runs fn against every store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, e engine)) {
	t.Helper()
	for _, backend := range testfixtures.Backends() {
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			fn(t, newEngine(t, backend))
		})
	}
}

func day(s string) scheduler.Range {
	return scheduler.SingleDay(scheduler.MustParseDate(s))
}

func span(start, end string) scheduler.Range {
	return scheduler.Range{Start: scheduler.MustParseDate(start), End: scheduler.MustParseDate(end)}
}

func datePtr(s string) *scheduler.Date {
	d := scheduler.MustParseDate(s)
	return &d
}

func requireKind(t *testing.T, err error, want error) *application.BookingError {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	var bErr *application.BookingError
	errors.As(err, &bErr)
	return bErr
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors[field]; !ok {
		t.Fatalf("expected field error on %s, got %#v", field, vErr.FieldErrors)
	}
}
