package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/desk-booking/internal/scheduler"
)

// Dispatcher is the single entry point for booking operations. It resolves a
// request variant to the service call that implements it.
type Dispatcher struct {
	bookings    *BookingService
	assignments *AssignmentService
	logger      *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(bookings *BookingService, assignments *AssignmentService, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{bookings: bookings, assignments: assignments, logger: defaultLogger(logger)}
}

// DispatchJSON decodes the payload of the named operation and dispatches it.
func (d *Dispatcher) DispatchJSON(ctx context.Context, principal Principal, operation string, payload json.RawMessage) (any, error) {
	if !principal.authenticated() {
		return nil, ErrUnauthenticated
	}
	req, err := DecodeRequest(operation, payload)
	if err != nil {
		serviceLogger(ctx, d.logger, "Dispatcher", operation, "principal_id", principal.UserID).
			WarnContext(ctx, "payload rejected", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return d.Dispatch(ctx, principal, req)
}

// Dispatch runs one request on behalf of principal.
func (d *Dispatcher) Dispatch(ctx context.Context, principal Principal, req Request) (any, error) {
	if d == nil {
		return nil, fmt.Errorf("Dispatcher is nil")
	}
	if !principal.authenticated() {
		return nil, ErrUnauthenticated
	}

	switch r := req.(type) {
	case *CreateRequest:
		params, err := reservationParams(principal, r.ReservationPayload)
		if err != nil {
			return nil, err
		}
		return d.bookings.CreateReservation(ctx, params)

	case *RequestReservationRequest:
		params, err := reservationParams(principal, r.ReservationPayload)
		if err != nil {
			return nil, err
		}
		return d.bookings.RequestReservation(ctx, params)

	case *CreateFixedAssignmentRequest:
		rng, err := parseRange(r.DateStart, r.DateEnd)
		if err != nil {
			return nil, err
		}
		return d.assignments.CreateFixedAssignment(ctx, FixedAssignmentParams{
			Principal: principal, CellID: r.CellID, UserID: r.UserID, Range: rng,
		})

	case *AssignDaysRequest:
		rng, err := parseRange(r.DateStart, r.DateEnd)
		if err != nil {
			return nil, err
		}
		weekdays, err := parseWeekdays(r.Weekdays)
		if err != nil {
			return nil, err
		}
		return d.assignments.AssignDays(ctx, AssignDaysParams{
			Principal: principal, CellID: r.CellID, UserID: r.UserID, Range: rng, Weekdays: weekdays,
		})

	case *ApproveRequest:
		return d.bookings.ApproveReservation(ctx, ReservationActionParams{Principal: principal, ReservationID: r.ReservationID})

	case *RejectRequest:
		return d.bookings.RejectReservation(ctx, ReservationActionParams{Principal: principal, ReservationID: r.ReservationID})

	case *CancelRequest:
		return d.bookings.CancelReservation(ctx, ReservationActionParams{Principal: principal, ReservationID: r.ReservationID})

	case *DeleteFixedAssignmentRequest:
		params := ReleaseAssignmentParams{Principal: principal, AssignmentID: r.AssignmentID}
		if r.Date != "" {
			day, err := scheduler.ParseDate(r.Date)
			if err != nil {
				return nil, fieldError("date", "date must be a date formatted as YYYY-MM-DD")
			}
			params.Day = &day
		}
		return d.assignments.ReleaseFixedAssignment(ctx, params)

	case *ListMyReservationsRequest:
		statuses, err := parseStatuses(r.Statuses)
		if err != nil {
			return nil, err
		}
		rng, err := parseOptionalRange(r.DateStart, r.DateEnd)
		if err != nil {
			return nil, err
		}
		return d.bookings.ListMyReservations(ctx, ListMyReservationsParams{Principal: principal, Statuses: statuses, Range: rng})

	case *ListRoomReservationsRequest:
		statuses, err := parseStatuses(r.Statuses)
		if err != nil {
			return nil, err
		}
		rng, err := parseOptionalRange(r.DateStart, r.DateEnd)
		if err != nil {
			return nil, err
		}
		return d.bookings.ListRoomReservations(ctx, ListRoomReservationsParams{
			Principal: principal, RoomID: r.RoomID, Statuses: statuses, Range: rng,
		})

	case *ListPendingApprovalsRequest:
		return d.bookings.ListPendingApprovals(ctx, ListPendingApprovalsParams{Principal: principal, RoomID: r.RoomID})

	case *CheckAvailabilityRequest:
		rng, err := parseRange(r.DateStart, r.DateEnd)
		if err != nil {
			return nil, err
		}
		return d.bookings.CheckAvailability(ctx, CheckAvailabilityParams{
			Principal: principal, RoomID: r.RoomID, CellID: r.CellID, Range: rng,
		})
	}

	op := "<nil>"
	if req != nil {
		op = req.Operation()
	}
	return nil, newBookingError(ErrUnknownOperation, map[string]string{"operation": op}, "unknown operation %q", op)
}

func reservationParams(principal Principal, p ReservationPayload) (ReservationParams, error) {
	rng, err := parseRange(p.DateStart, p.DateEnd)
	if err != nil {
		return ReservationParams{}, err
	}
	segment, err := parseSegment(p.TimeSegment)
	if err != nil {
		return ReservationParams{}, err
	}
	return ReservationParams{
		Principal: principal,
		CellID:    p.CellID,
		UserID:    p.UserID,
		Range:     rng,
		Segment:   segment,
	}, nil
}
