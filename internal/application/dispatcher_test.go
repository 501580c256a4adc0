package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/persistence/memory"
	"github.com/example/desk-booking/internal/scheduler"
	"github.com/example/desk-booking/internal/testfixtures"
)

func TestDispatcher_DispatchJSON(t *testing.T) {
	t.Parallel()

	store := memory.New()
	world := testfixtures.SeedWorld(t, store)
	svc := testfixtures.NewServiceFactory().NewServices(store)
	ctx := context.Background()
	alice := testfixtures.Principal(world.Alice)
	roomAdmin := testfixtures.Principal(world.RoomAdmin)

	call := func(t *testing.T, principal application.Principal, op, payload string) (any, error) {
		t.Helper()
		return svc.Dispatcher.DispatchJSON(ctx, principal, op, json.RawMessage(payload))
	}

	if _, err := call(t, application.Principal{}, application.OpCreate, `{}`); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := call(t, alice, "teleport", `{}`); application.ErrorKind(err) != application.KindUnknownOperation {
		t.Fatalf("expected UnknownOperation, got %v", err)
	}

	out, err := call(t, alice, application.OpRequest, `{"cell_id":"C1","date_start":"2024-06-10","time_segment":"am"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	pending, ok := out.(application.Reservation)
	if !ok {
		t.Fatalf("expected Reservation, got %T", out)
	}
	if pending.Status != scheduler.StatusPending || pending.Segment != scheduler.SegmentAM {
		t.Fatalf("unexpected reservation %#v", pending)
	}

	out, err = call(t, roomAdmin, application.OpListPendingApprovals, `{}`)
	if err != nil {
		t.Fatalf("list_pending_approvals failed: %v", err)
	}
	if queue := out.([]application.Reservation); len(queue) != 1 {
		t.Fatalf("expected one pending reservation, got %d", len(queue))
	}

	out, err = call(t, roomAdmin, application.OpApprove, `{"reservation_id":"`+pending.ID+`"}`)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if out.(application.Reservation).Status != scheduler.StatusApproved {
		t.Fatalf("expected approved reservation")
	}

	_, err = call(t, testfixtures.Principal(world.Bob), application.OpCreate, `{"cell_id":"C1","date_start":"2024-06-10"}`)
	if application.ErrorKind(err) != application.KindSlotConflict {
		t.Fatalf("expected SlotConflict for a FULL booking over an approved AM, got %v", err)
	}

	out, err = call(t, roomAdmin, application.OpCreateFixedAssignment, `{"cell_id":"C2","user_id":"bob","date_start":"2024-01-01","date_end":"2024-01-10"}`)
	if err != nil {
		t.Fatalf("create_fixed_assignment failed: %v", err)
	}
	assignment := out.(application.FixedAssignment)

	out, err = call(t, roomAdmin, application.OpDeleteFixedAssignment, `{"assignment_id":"`+assignment.ID+`","date":"2024-01-05"}`)
	if err != nil {
		t.Fatalf("delete_fixed_assignment failed: %v", err)
	}
	if release := out.(application.AssignmentRelease); release.Split == nil {
		t.Fatalf("expected a split, got %#v", release)
	}

	out, err = call(t, roomAdmin, application.OpAssignDays, `{"cell_id":"C1","user_id":"bob","date_start":"2024-06-17","date_end":"2024-06-23","weekdays":["tue","thu"]}`)
	if err != nil {
		t.Fatalf("assign_days failed: %v", err)
	}
	if days := out.([]application.Reservation); len(days) != 2 {
		t.Fatalf("expected two generated reservations, got %d", len(days))
	}

	out, err = call(t, alice, application.OpListMyReservations, `{"statuses":["approved"]}`)
	if err != nil {
		t.Fatalf("list_my_reservations failed: %v", err)
	}
	if mine := out.(application.BookingList); len(mine.Reservations) != 1 {
		t.Fatalf("expected one approved reservation, got %#v", mine)
	}

	out, err = call(t, alice, application.OpListRoomReservations, `{"room_id":"R1","date_start":"2024-01-01","date_end":"2024-01-31"}`)
	if err != nil {
		t.Fatalf("list_room_reservations failed: %v", err)
	}
	if room := out.(application.BookingList); len(room.FixedAssignments) != 2 || len(room.Reservations) != 0 {
		t.Fatalf("expected both assignment halves in January, got %#v", room)
	}

	out, err = call(t, alice, application.OpCheckAvailability, `{"room_id":"R1","cell_id":"C2","date_start":"2024-01-05"}`)
	if err != nil {
		t.Fatalf("check_availability failed: %v", err)
	}
	if cells := out.([]application.CellAvailability); len(cells[0].Days[0].Free) != 3 {
		t.Fatalf("expected released day to be free, got %#v", cells)
	}

	_, err = call(t, alice, application.OpCancel, `{"reservation_id":"`+pending.ID+`"}`)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err = call(t, alice, application.OpCancel, `{"reservation_id":"`+pending.ID+`"}`)
	if application.ErrorKind(err) != application.KindAlreadyCancelled {
		t.Fatalf("expected AlreadyCancelled, got %v", err)
	}

	_, err = call(t, roomAdmin, application.OpReject, `{"reservation_id":"`+pending.ID+`"}`)
	if application.ErrorKind(err) != application.KindInvalidTransition {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}

	_, err = call(t, roomAdmin, application.OpCreateFixedAssignment, `{"cell_id":"C1","user_id":"alice","date_start":"2024-01-01","date_end":"2025-02-04"}`)
	if application.ErrorKind(err) != application.KindRangeTooLong {
		t.Fatalf("expected RangeTooLong, got %v", err)
	}
}

func TestDispatcher_DispatchUnknownRequest(t *testing.T) {
	t.Parallel()

	d := application.NewDispatcher(nil, nil, nil)
	_, err := d.Dispatch(context.Background(), application.Principal{UserID: "u"}, nil)
	if !errors.Is(err, application.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}
