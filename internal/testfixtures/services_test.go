package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/persistence/memory"
	"github.com/example/desk-booking/internal/scheduler"
)

func TestServiceFactoryNewServices(t *testing.T) {
	factory := NewServiceFactory()
	store := memory.New()
	world := SeedWorld(t, store)
	svc := factory.NewServices(store)

	reservation, err := svc.Bookings.CreateReservation(context.Background(), application.ReservationParams{
		Principal: Principal(world.Alice),
		CellID:    world.C1.ID,
		Range:     scheduler.SingleDay(scheduler.MustParseDate("2024-06-10")),
		Segment:   scheduler.SegmentAM,
	})
	if err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}
	if reservation.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", reservation.ID)
	}
	if !reservation.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), reservation.CreatedAt)
	}

	issued, err := svc.Auth.IssueSession(context.Background(), world.Alice.ID)
	if err != nil {
		t.Fatalf("IssueSession returned error: %v", err)
	}
	if issued.Token != "token-1" {
		t.Fatalf("expected token from the token sequence, got %q", issued.Token)
	}
	if got := factory.IDGenerator.Issued(); len(got) != 2 || got[1] != issued.ID {
		t.Fatalf("expected reservation and session ids from the id sequence, got %v", got)
	}
}

func TestServiceFactoryWithConfig(t *testing.T) {
	factory := NewServiceFactory(WithConfig(func(cfg *config.Config) {
		cfg.Booking.MaxRangeDays = 2
	}))
	store := memory.New()
	world := SeedWorld(t, store)
	svc := factory.NewServices(store)

	_, err := svc.Bookings.CreateReservation(context.Background(), application.ReservationParams{
		Principal: Principal(world.Alice),
		CellID:    world.C1.ID,
		Range:     scheduler.Range{Start: factory.Clock.Today(), End: factory.Clock.Today().AddDays(2)},
		Segment:   scheduler.SegmentFull,
	})
	if !errors.Is(err, application.ErrRangeTooLong) {
		t.Fatalf("expected the configured cap to apply, got %v", err)
	}
}
