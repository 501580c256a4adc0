package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
	"github.com/example/desk-booking/internal/testfixtures"
)

// forEachBackend runs fn against every store implementation so that the
// in-memory store and the SQL store honour the same contract.
func forEachBackend(t *testing.T, fn func(t *testing.T, store persistence.Store, world testfixtures.World)) {
	t.Helper()
	for _, backend := range testfixtures.Backends() {
		t.Run(backend.Name, func(t *testing.T) {
			t.Parallel()
			store := backend.Open(t)
			fn(t, store, testfixtures.SeedWorld(t, store))
		})
	}
}

func day(s string) scheduler.Range {
	return scheduler.SingleDay(scheduler.MustParseDate(s))
}

func span(start, end string) scheduler.Range {
	return scheduler.Range{Start: scheduler.MustParseDate(start), End: scheduler.MustParseDate(end)}
}

func reservationWrite(id string, cell persistence.Cell, userID string, r scheduler.Range, segment scheduler.Segment, status scheduler.Status) persistence.ReservationWrite {
	now := testfixtures.ReferenceTime()
	model := persistence.Reservation{
		ID:        id,
		CellID:    cell.ID,
		RoomID:    cell.RoomID,
		UserID:    userID,
		DateStart: r.Start,
		DateEnd:   r.End,
		Segment:   segment,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	booking := scheduler.Booking{
		Kind: scheduler.KindReservation, ID: id, CellID: cell.ID, RoomID: cell.RoomID,
		UserID: userID, Range: r, Segment: segment, Status: status,
	}
	return persistence.ReservationWrite{Reservation: model, Claims: scheduler.ClaimsFor(booking)}
}

func fixedAssignment(id string, cell persistence.Cell, userID string, r scheduler.Range) (persistence.FixedAssignment, scheduler.Claims) {
	now := testfixtures.ReferenceTime()
	model := persistence.FixedAssignment{
		ID:         id,
		CellID:     cell.ID,
		RoomID:     cell.RoomID,
		AssignedTo: userID,
		DateStart:  r.Start,
		DateEnd:    r.End,
		CreatedBy:  "admin",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return model, scheduler.ClaimsFor(scheduler.FixedAssignmentBooking(id, cell.ID, cell.RoomID, userID, r))
}

func TestUserRepository(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
		ctx := context.Background()

		fetched, err := store.GetUser(ctx, world.Alice.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if fetched.Email != world.Alice.Email || !fetched.Active || !fetched.CreatedAt.Equal(world.Alice.CreatedAt) {
			t.Fatalf("unexpected user data: %#v", fetched)
		}

		byEmail, err := store.GetUserByEmail(ctx, "ALICE@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != world.Alice.ID {
			t.Fatalf("expected case-insensitive lookup, got %#v", byEmail)
		}

		fetched.DisplayName = "Alice Updated"
		fetched.Active = false
		fetched.UpdatedAt = fetched.UpdatedAt.Add(time.Hour)
		if err := store.UpdateUser(ctx, fetched); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		updated, _ := store.GetUser(ctx, world.Alice.ID)
		if updated.DisplayName != "Alice Updated" || updated.Active {
			t.Fatalf("unexpected updated user: %#v", updated)
		}

		dup := testfixtures.NewUser(testfixtures.WithUserEmail(world.Bob.Email))
		if err := store.CreateUser(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
		}

		missing := testfixtures.NewUser()
		if err := store.UpdateUser(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}

		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 5 {
			t.Fatalf("expected seeded users, got %d", len(users))
		}
	})
}

func TestRoomRepository(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
		ctx := context.Background()

		room, err := store.GetRoom(ctx, world.R1.ID)
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if room.GridRows != 4 || room.GridCols != 4 {
			t.Fatalf("unexpected room %#v", room)
		}
		if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}

		cells, err := store.ListCells(ctx, world.R1.ID)
		if err != nil {
			t.Fatalf("ListCells failed: %v", err)
		}
		if len(cells) != 2 || cells[0].ID != world.C1.ID || cells[1].ID != world.C2.ID {
			t.Fatalf("expected C1 then C2, got %#v", cells)
		}
		if cells[0].Label == nil || *cells[0].Label != "C1" {
			t.Fatalf("expected label to round trip, got %v", cells[0].Label)
		}

		clash := testfixtures.NewCell("", world.R1.ID, 0, 0)
		if err := store.CreateCell(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected grid position clash to be a duplicate, got %v", err)
		}
		orphan := testfixtures.NewCell("", "missing", 1, 1)
		if err := store.CreateCell(ctx, orphan); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected persistence.ErrConstraintViolation, got %v", err)
		}
	})
}

func TestRoomAccessRepository(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
		ctx := context.Background()

		grants, err := store.ListRoomAccessForUser(ctx, world.Alice.ID)
		if err != nil {
			t.Fatalf("ListRoomAccessForUser failed: %v", err)
		}
		if len(grants) != 2 || grants[0].RoomID != world.R1.ID || grants[1].RoomID != world.R2.ID {
			t.Fatalf("unexpected grants %#v", grants)
		}

		upgrade := persistence.RoomAccess{RoomID: world.R1.ID, UserID: world.Alice.ID, Role: "admin", CreatedAt: testfixtures.ReferenceTime()}
		if err := store.UpsertRoomAccess(ctx, upgrade); err != nil {
			t.Fatalf("UpsertRoomAccess failed: %v", err)
		}
		grant, err := store.GetRoomAccess(ctx, world.R1.ID, world.Alice.ID)
		if err != nil || grant.Role != "admin" {
			t.Fatalf("expected upgraded grant, got %#v, %v", grant, err)
		}

		if err := store.DeleteRoomAccess(ctx, world.R1.ID, world.Alice.ID); err != nil {
			t.Fatalf("DeleteRoomAccess failed: %v", err)
		}
		if _, err := store.GetRoomAccess(ctx, world.R1.ID, world.Alice.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
		if err := store.DeleteRoomAccess(ctx, world.R1.ID, world.Alice.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestReservationRepository(t *testing.T) {
	t.Parallel()

	t.Run("claims reject a second holder", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			am := reservationWrite("r-am", world.C1, world.Alice.ID, day("2024-06-10"), scheduler.SegmentAM, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{am}); err != nil {
				t.Fatalf("CreateReservations failed: %v", err)
			}

			full := reservationWrite("r-full", world.C1, world.Bob.ID, day("2024-06-10"), scheduler.SegmentFull, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{full}); !errors.Is(err, persistence.ErrCellSlotTaken) {
				t.Fatalf("expected persistence.ErrCellSlotTaken, got %v", err)
			}

			pm := reservationWrite("r-pm", world.C1, world.Bob.ID, day("2024-06-10"), scheduler.SegmentPM, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{pm}); err != nil {
				t.Fatalf("expected opposite half to be free, got %v", err)
			}

			elsewhere := reservationWrite("r-else", world.C3, world.Alice.ID, day("2024-06-10"), scheduler.SegmentPM, scheduler.StatusPending)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{elsewhere}); !errors.Is(err, persistence.ErrUserDayTaken) {
				t.Fatalf("expected persistence.ErrUserDayTaken, got %v", err)
			}

			if _, err := store.GetReservation(ctx, "r-full"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected refused write to leave no row, got %v", err)
			}
		})
	})

	t.Run("batches are atomic", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			blocker := reservationWrite("r-block", world.C2, world.Alice.ID, day("2024-06-12"), scheduler.SegmentPM, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{blocker}); err != nil {
				t.Fatalf("CreateReservations failed: %v", err)
			}

			batch := []persistence.ReservationWrite{
				reservationWrite("d1", world.C2, world.Bob.ID, day("2024-06-11"), scheduler.SegmentFull, scheduler.StatusApproved),
				reservationWrite("d2", world.C2, world.Bob.ID, day("2024-06-12"), scheduler.SegmentFull, scheduler.StatusApproved),
			}
			if err := store.CreateReservations(ctx, batch); !errors.Is(err, persistence.ErrCellSlotTaken) {
				t.Fatalf("expected persistence.ErrCellSlotTaken, got %v", err)
			}
			rows, err := store.ListReservations(ctx, persistence.ReservationFilter{UserID: world.Bob.ID})
			if err != nil {
				t.Fatalf("ListReservations failed: %v", err)
			}
			if len(rows) != 0 {
				t.Fatalf("expected nothing from the failed batch, got %#v", rows)
			}
			if err := store.CreateReservations(ctx, batch[:1]); err != nil {
				t.Fatalf("expected claims of the failed batch to be rolled back, got %v", err)
			}
		})
	})

	t.Run("filters combine", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			writes := []persistence.ReservationWrite{
				reservationWrite("a1", world.C1, world.Alice.ID, span("2024-06-10", "2024-06-11"), scheduler.SegmentAM, scheduler.StatusApproved),
				reservationWrite("a2", world.C3, world.Alice.ID, day("2024-06-14"), scheduler.SegmentAM, scheduler.StatusPending),
				reservationWrite("b1", world.C2, world.Bob.ID, day("2024-06-11"), scheduler.SegmentPM, scheduler.StatusPending),
			}
			if err := store.CreateReservations(ctx, writes); err != nil {
				t.Fatalf("CreateReservations failed: %v", err)
			}

			window := day("2024-06-11")
			tests := []struct {
				name   string
				filter persistence.ReservationFilter
				want   []string
			}{
				{name: "everything", filter: persistence.ReservationFilter{}, want: []string{"a1", "b1", "a2"}},
				{name: "by user", filter: persistence.ReservationFilter{UserID: world.Alice.ID}, want: []string{"a1", "a2"}},
				{name: "by cell", filter: persistence.ReservationFilter{CellID: world.C2.ID}, want: []string{"b1"}},
				{name: "by rooms", filter: persistence.ReservationFilter{RoomIDs: []string{world.R2.ID}}, want: []string{"a2"}},
				{name: "empty room list", filter: persistence.ReservationFilter{RoomIDs: []string{}}, want: []string{"a1", "b1", "a2"}},
				{name: "by status", filter: persistence.ReservationFilter{Statuses: []scheduler.Status{scheduler.StatusPending}}, want: []string{"b1", "a2"}},
				{name: "overlapping", filter: persistence.ReservationFilter{Overlapping: &window}, want: []string{"a1", "b1"}},
			}
			for _, tc := range tests {
				rows, err := store.ListReservations(ctx, tc.filter)
				if err != nil {
					t.Fatalf("%s: ListReservations failed: %v", tc.name, err)
				}
				got := make([]string, 0, len(rows))
				for _, r := range rows {
					got = append(got, r.ID)
				}
				if len(got) != len(tc.want) {
					t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
				}
				for i := range got {
					if got[i] != tc.want[i] {
						t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
					}
				}
			}
		})
	})

	t.Run("status changes are conditional", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			w := reservationWrite("p1", world.C1, world.Alice.ID, day("2024-06-10"), scheduler.SegmentAM, scheduler.StatusPending)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{w}); err != nil {
				t.Fatalf("CreateReservations failed: %v", err)
			}

			approvedAt := testfixtures.ReferenceTime().Add(time.Hour)
			approver := world.RoomAdmin.ID
			approvedBooking := scheduler.Booking{
				Kind: scheduler.KindReservation, ID: "p1", CellID: world.C1.ID, UserID: world.Alice.ID,
				Range: day("2024-06-10"), Segment: scheduler.SegmentAM, Status: scheduler.StatusApproved,
			}
			approve := persistence.StatusChange{
				ID: "p1", From: scheduler.StatusPending, To: scheduler.StatusApproved,
				ApprovedBy: &approver, ApprovedAt: &approvedAt, UpdatedAt: approvedAt,
				Acquire: scheduler.Claims{Cells: scheduler.CellClaimsFor(approvedBooking)},
			}
			updated, err := store.ChangeReservationStatus(ctx, approve)
			if err != nil {
				t.Fatalf("ChangeReservationStatus failed: %v", err)
			}
			if updated.Status != scheduler.StatusApproved || updated.ApprovedBy == nil || *updated.ApprovedBy != approver {
				t.Fatalf("unexpected approved row %#v", updated)
			}
			if updated.ApprovedAt == nil || !updated.ApprovedAt.Equal(approvedAt) || !updated.UpdatedAt.Equal(approvedAt) {
				t.Fatalf("expected timestamps to round trip, got %#v", updated)
			}

			_, err = store.ChangeReservationStatus(ctx, approve)
			var stale *persistence.StaleStatusError
			if !errors.Is(err, persistence.ErrStaleWrite) || !errors.As(err, &stale) {
				t.Fatalf("expected persistence.ErrStaleWrite, got %v", err)
			}
			if stale.ReservationID != "p1" || stale.Current != scheduler.StatusApproved {
				t.Fatalf("expected the stale error to report the approved row, got %+v", stale)
			}
			if _, err := store.ChangeReservationStatus(ctx, persistence.StatusChange{ID: "missing", From: scheduler.StatusPending, To: scheduler.StatusApproved}); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected persistence.ErrNotFound, got %v", err)
			}

			taken := reservationWrite("x1", world.C1, world.Bob.ID, day("2024-06-10"), scheduler.SegmentAM, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{taken}); !errors.Is(err, persistence.ErrCellSlotTaken) {
				t.Fatalf("expected approval to take the cell, got %v", err)
			}

			cancel := persistence.StatusChange{ID: "p1", From: scheduler.StatusApproved, To: scheduler.StatusCancelled, UpdatedAt: approvedAt, Release: true}
			cancelled, err := store.ChangeReservationStatus(ctx, cancel)
			if err != nil {
				t.Fatalf("cancel failed: %v", err)
			}
			if cancelled.ApprovedBy == nil || *cancelled.ApprovedBy != approver {
				t.Fatalf("expected approval audit to survive cancellation, got %#v", cancelled)
			}
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{taken}); err != nil {
				t.Fatalf("expected cancellation to release the claims, got %v", err)
			}
		})
	})
}

func TestFixedAssignmentRepository(t *testing.T) {
	t.Parallel()

	t.Run("inner day release splits and repoints claims", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			original := span("2024-01-01", "2024-01-10")
			model, claims := fixedAssignment("fa1", world.C2, world.Alice.ID, original)
			if err := store.CreateFixedAssignment(ctx, model, claims); err != nil {
				t.Fatalf("CreateFixedAssignment failed: %v", err)
			}

			again, againClaims := fixedAssignment("fa2", world.C2, world.Bob.ID, day("2024-01-03"))
			if err := store.CreateFixedAssignment(ctx, again, againClaims); !errors.Is(err, persistence.ErrCellSlotTaken) {
				t.Fatalf("expected persistence.ErrCellSlotTaken, got %v", err)
			}

			plan, err := scheduler.PlanDayRelease(original, scheduler.MustParseDate("2024-01-05"))
			if err != nil {
				t.Fatalf("PlanDayRelease failed: %v", err)
			}
			split := model
			split.ID = "fa1-split"
			split.DateStart = plan.Split.Start
			split.DateEnd = plan.Split.End
			release := persistence.DayRelease{
				AssignmentID: model.ID,
				Expected:     original,
				Day:          plan.Day,
				Keep:         plan.Keep,
				Split:        &split,
				UpdatedAt:    testfixtures.ReferenceTime().Add(time.Hour),
			}
			if err := store.ReleaseFixedAssignmentDay(ctx, release); err != nil {
				t.Fatalf("ReleaseFixedAssignmentDay failed: %v", err)
			}
			if err := store.ReleaseFixedAssignmentDay(ctx, release); !errors.Is(err, persistence.ErrStaleWrite) {
				t.Fatalf("expected persistence.ErrStaleWrite on replay, got %v", err)
			}

			kept, err := store.GetFixedAssignment(ctx, model.ID)
			if err != nil {
				t.Fatalf("GetFixedAssignment failed: %v", err)
			}
			if kept.DateStart.String() != "2024-01-01" || kept.DateEnd.String() != "2024-01-04" {
				t.Fatalf("unexpected kept range %s..%s", kept.DateStart, kept.DateEnd)
			}
			stored, err := store.GetFixedAssignment(ctx, split.ID)
			if err != nil {
				t.Fatalf("GetFixedAssignment(split) failed: %v", err)
			}
			if stored.DateStart.String() != "2024-01-06" || stored.DateEnd.String() != "2024-01-10" {
				t.Fatalf("unexpected split range %s..%s", stored.DateStart, stored.DateEnd)
			}

			free := reservationWrite("r5", world.C2, world.Bob.ID, day("2024-01-05"), scheduler.SegmentFull, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{free}); err != nil {
				t.Fatalf("expected released day to be free, got %v", err)
			}

			if err := store.DeleteFixedAssignment(ctx, split.ID); err != nil {
				t.Fatalf("DeleteFixedAssignment failed: %v", err)
			}
			later := reservationWrite("r8", world.C2, world.Bob.ID, day("2024-01-08"), scheduler.SegmentFull, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{later}); err != nil {
				t.Fatalf("expected split claims to follow the split row, got %v", err)
			}
			early := reservationWrite("r2", world.C2, world.Bob.ID, day("2024-01-02"), scheduler.SegmentAM, scheduler.StatusApproved)
			if err := store.CreateReservations(ctx, []persistence.ReservationWrite{early}); !errors.Is(err, persistence.ErrCellSlotTaken) {
				t.Fatalf("expected kept range to still hold its claims, got %v", err)
			}
		})
	})

	t.Run("single day release removes the row", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			model, claims := fixedAssignment("fa1", world.C1, world.Bob.ID, day("2024-02-01"))
			if err := store.CreateFixedAssignment(ctx, model, claims); err != nil {
				t.Fatalf("CreateFixedAssignment failed: %v", err)
			}
			release := persistence.DayRelease{
				AssignmentID: model.ID,
				Expected:     day("2024-02-01"),
				Day:          scheduler.MustParseDate("2024-02-01"),
				Remove:       true,
				UpdatedAt:    testfixtures.ReferenceTime(),
			}
			if err := store.ReleaseFixedAssignmentDay(ctx, release); err != nil {
				t.Fatalf("ReleaseFixedAssignmentDay failed: %v", err)
			}
			if _, err := store.GetFixedAssignment(ctx, model.ID); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected persistence.ErrNotFound, got %v", err)
			}
			if err := store.ReleaseFixedAssignmentDay(ctx, release); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected persistence.ErrNotFound on replay, got %v", err)
			}
			if err := store.DeleteFixedAssignment(ctx, model.ID); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected persistence.ErrNotFound on delete, got %v", err)
			}
		})
	})

	t.Run("filters", func(t *testing.T) {
		t.Parallel()
		forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
			ctx := context.Background()
			a, ac := fixedAssignment("fa-a", world.C1, world.Alice.ID, span("2024-03-01", "2024-03-05"))
			b, bc := fixedAssignment("fa-b", world.C3, world.Bob.ID, span("2024-03-04", "2024-03-08"))
			for _, pair := range []struct {
				m persistence.FixedAssignment
				c scheduler.Claims
			}{{a, ac}, {b, bc}} {
				if err := store.CreateFixedAssignment(ctx, pair.m, pair.c); err != nil {
					t.Fatalf("CreateFixedAssignment failed: %v", err)
				}
			}

			window := day("2024-03-06")
			rows, err := store.ListFixedAssignments(ctx, persistence.AssignmentFilter{Overlapping: &window})
			if err != nil || len(rows) != 1 || rows[0].ID != "fa-b" {
				t.Fatalf("expected only fa-b on 2024-03-06, got %#v, %v", rows, err)
			}
			rows, err = store.ListFixedAssignments(ctx, persistence.AssignmentFilter{RoomIDs: []string{world.R1.ID}})
			if err != nil || len(rows) != 1 || rows[0].ID != "fa-a" {
				t.Fatalf("expected only fa-a in R1, got %#v, %v", rows, err)
			}
			rows, err = store.ListFixedAssignments(ctx, persistence.AssignmentFilter{UserID: world.Bob.ID, CellID: world.C3.ID})
			if err != nil || len(rows) != 1 {
				t.Fatalf("expected Bob's assignment, got %#v, %v", rows, err)
			}
		})
	})
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, store persistence.Store, world testfixtures.World) {
		ctx := context.Background()
		base := testfixtures.ReferenceTime()

		live := persistence.Session{ID: "s1", UserID: world.Alice.ID, TokenDigest: "d1", ExpiresAt: base.Add(time.Hour), CreatedAt: base}
		stale := persistence.Session{ID: "s2", UserID: world.Bob.ID, TokenDigest: "d2", ExpiresAt: base.Add(-time.Minute), CreatedAt: base}
		for _, s := range []persistence.Session{live, stale} {
			if err := store.CreateSession(ctx, s); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}
		}
		dup := persistence.Session{ID: "s3", UserID: world.Bob.ID, TokenDigest: "d1", ExpiresAt: base.Add(time.Hour), CreatedAt: base}
		if err := store.CreateSession(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
		}

		fetched, err := store.GetSessionByDigest(ctx, "d1")
		if err != nil {
			t.Fatalf("GetSessionByDigest failed: %v", err)
		}
		if fetched.ID != "s1" || !fetched.ExpiresAt.Equal(live.ExpiresAt) || fetched.RevokedAt != nil {
			t.Fatalf("unexpected session %#v", fetched)
		}

		if err := store.RevokeSession(ctx, "s1", base); err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		fetched, _ = store.GetSessionByDigest(ctx, "d1")
		if fetched.RevokedAt == nil || !fetched.RevokedAt.Equal(base) {
			t.Fatalf("expected revoked_at to be set, got %v", fetched.RevokedAt)
		}
		if err := store.RevokeSession(ctx, "missing", base); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}

		removed, err := store.DeleteExpiredSessions(ctx, base)
		if err != nil {
			t.Fatalf("DeleteExpiredSessions failed: %v", err)
		}
		if removed != 1 {
			t.Fatalf("expected one expired session removed, got %d", removed)
		}
		if _, err := store.GetSessionByDigest(ctx, "d2"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected expired session to be gone, got %v", err)
		}
	})
}
