package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// ReservationParams describes a reservation to create. UserID defaults to
// the principal; booking for someone else requires room admin rights.
type ReservationParams struct {
	Principal Principal
	CellID    string
	UserID    string
	Range     scheduler.Range
	Segment   scheduler.Segment
}

// ReservationActionParams identifies the reservation an approve, reject or
// cancel call acts on.
type ReservationActionParams struct {
	Principal     Principal
	ReservationID string
}

// ListMyReservationsParams filters the caller's own bookings.
type ListMyReservationsParams struct {
	Principal Principal
	Statuses  []scheduler.Status
	Range     *scheduler.Range
}

// ListRoomReservationsParams filters the bookings of one room.
type ListRoomReservationsParams struct {
	Principal Principal
	RoomID    string
	Statuses  []scheduler.Status
	Range     *scheduler.Range
}

// ListPendingApprovalsParams narrows the approval queue to one room when RoomID is set.
type ListPendingApprovalsParams struct {
	Principal Principal
	RoomID    string
}

// CheckAvailabilityParams asks for the free segments of a room, or one of its
// cells, over a range.
type CheckAvailabilityParams struct {
	Principal Principal
	RoomID    string
	CellID    string
	Range     scheduler.Range
}

// BookingServiceDeps wires a BookingService.
type BookingServiceDeps struct {
	Store        BookingStore
	Cells        CellCatalog
	Users        UserDirectory
	Access       *AccessResolver
	Cache        *AvailabilityCache
	IDGenerator  func() string
	Now          func() time.Time
	MaxRangeDays int
	Logger       *slog.Logger
}

// BookingService runs the reservation lifecycle: creation behind the conflict
// and exclusivity guards, approval, rejection, cancellation and queries.
type BookingService struct {
	bookingGuards
	cells        CellCatalog
	users        UserDirectory
	access       *AccessResolver
	cache        *AvailabilityCache
	idGenerator  func() string
	now          func() time.Time
	maxRangeDays int
	logger       *slog.Logger
}

// NewBookingService wires dependencies for reservation operations.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxDays := deps.MaxRangeDays
	if maxDays <= 0 {
		maxDays = scheduler.MaxAssignmentDays
	}
	return &BookingService{
		bookingGuards: bookingGuards{store: deps.Store},
		cells:         deps.Cells,
		users:         deps.Users,
		access:        deps.Access,
		cache:         deps.Cache,
		idGenerator:   idGenerator,
		now:           now,
		maxRangeDays:  maxDays,
		logger:        defaultLogger(deps.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateReservation books a desk directly. The reservation is approved on
// creation with the acting principal as approver.
func (s *BookingService) CreateReservation(ctx context.Context, params ReservationParams) (Reservation, error) {
	return s.book(ctx, "CreateReservation", params, scheduler.StatusApproved)
}

// RequestReservation files a reservation that waits for a room admin's approval.
func (s *BookingService) RequestReservation(ctx context.Context, params ReservationParams) (Reservation, error) {
	return s.book(ctx, "RequestReservation", params, scheduler.StatusPending)
}

func (s *BookingService) book(ctx context.Context, operation string, params ReservationParams, status scheduler.Status) (result Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}
	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"user_id", userID,
		"cell_id", params.CellID,
		"range", params.Range.String(),
		"time_segment", string(params.Segment),
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "reservation refused", err)
			return
		}
		logger.InfoContext(ctx, "reservation created", "reservation_id", result.ID, "status", string(result.Status))
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.CellID) == "" {
		vErr.add("cell_id", "cell_id is required")
	}
	if !params.Segment.Valid() {
		vErr.add("time_segment", "time_segment must be AM, PM or FULL")
	}
	validateRange(params.Range, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var cell persistence.Cell
	if cell, err = s.cells.GetCell(ctx, params.CellID); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	if userID == params.Principal.UserID {
		err = s.access.requireRoomAccess(ctx, params.Principal, cell.RoomID, "book a desk")
	} else {
		err = s.access.requireRoomAdmin(ctx, params.Principal, cell.RoomID, "book for another user")
	}
	if err != nil {
		return
	}
	if err = ensureActiveUser(ctx, s.users, userID); err != nil {
		return
	}
	if err = checkSpan(params.Range, s.maxRangeDays); err != nil {
		return
	}
	if err = s.checkCellConflict(ctx, cell.ID, params.Range, params.Segment, userID); err != nil {
		return
	}
	if err = s.checkUserDailyExclusivity(ctx, userID, params.Range); err != nil {
		return
	}

	now := s.now()
	model := persistence.Reservation{
		ID:        s.idGenerator(),
		CellID:    cell.ID,
		RoomID:    cell.RoomID,
		UserID:    userID,
		DateStart: params.Range.Start,
		DateEnd:   params.Range.End,
		Segment:   params.Segment,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == scheduler.StatusApproved {
		approver := params.Principal.UserID
		model.ApprovedBy = &approver
		model.ApprovedAt = &now
	}

	write := persistence.ReservationWrite{
		Reservation: model,
		Claims:      scheduler.ClaimsFor(reservationBooking(model)),
	}
	if err = s.store.CreateReservations(ctx, []persistence.ReservationWrite{write}); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	s.cache.InvalidateRoom(cell.RoomID)

	result = toReservation(model)
	return
}

// ApproveReservation moves a pending reservation to approved. The cell is
// checked again because pending reservations do not hold it.
func (s *BookingService) ApproveReservation(ctx context.Context, params ReservationActionParams) (Reservation, error) {
	return s.transition(ctx, "ApproveReservation", params, scheduler.EventApprove)
}

// RejectReservation moves a pending reservation to rejected.
func (s *BookingService) RejectReservation(ctx context.Context, params ReservationActionParams) (Reservation, error) {
	return s.transition(ctx, "RejectReservation", params, scheduler.EventReject)
}

// CancelReservation cancels a pending or approved reservation. Owners may
// cancel their own; room admins may cancel any in their rooms.
func (s *BookingService) CancelReservation(ctx context.Context, params ReservationActionParams) (Reservation, error) {
	return s.transition(ctx, "CancelReservation", params, scheduler.EventCancel)
}

func (s *BookingService) transition(ctx context.Context, operation string, params ReservationActionParams, event scheduler.Event) (result Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "status change refused", err)
			return
		}
		logger.InfoContext(ctx, "status changed", "status", string(result.Status))
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}
	if strings.TrimSpace(params.ReservationID) == "" {
		err = fieldError("reservation_id", "reservation_id is required")
		return
	}

	var current persistence.Reservation
	if current, err = s.store.GetReservation(ctx, params.ReservationID); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	switch event {
	case scheduler.EventApprove:
		err = s.access.requireRoomAdmin(ctx, params.Principal, current.RoomID, "approve reservations")
	case scheduler.EventReject:
		err = s.access.requireRoomAdmin(ctx, params.Principal, current.RoomID, "reject reservations")
	case scheduler.EventCancel:
		if current.UserID != params.Principal.UserID {
			err = s.access.requireRoomAdmin(ctx, params.Principal, current.RoomID, "cancel another user's reservation")
		}
	}
	if err != nil {
		return
	}

	var next scheduler.Status
	if next, err = scheduler.Transition(current.Status, event); err != nil {
		err = transitionError(current, event, err)
		return
	}

	now := s.now()
	change := persistence.StatusChange{
		ID:        current.ID,
		From:      current.Status,
		To:        next,
		UpdatedAt: now,
	}
	switch next {
	case scheduler.StatusApproved:
		r := scheduler.Range{Start: current.DateStart, End: current.DateEnd}
		if err = s.checkCellConflict(ctx, current.CellID, r, current.Segment, current.UserID); err != nil {
			return
		}
		approver := params.Principal.UserID
		change.ApprovedBy = &approver
		change.ApprovedAt = &now
		approved := reservationBooking(current)
		approved.Status = scheduler.StatusApproved
		change.Acquire = scheduler.Claims{Cells: scheduler.CellClaimsFor(approved)}
	case scheduler.StatusRejected, scheduler.StatusCancelled:
		change.Release = true
	case scheduler.StatusPending:
		err = fmt.Errorf("unexpected transition target %s", next)
		return
	}

	var updated persistence.Reservation
	if updated, err = s.store.ChangeReservationStatus(ctx, change); err != nil {
		err = mapTransitionRepoError(err, current, event)
		return
	}
	s.cache.InvalidateRoom(current.RoomID)

	result = toReservation(updated)
	return
}

func transitionError(current persistence.Reservation, event scheduler.Event, err error) error {
	details := map[string]string{"reservation_id": current.ID, "status": string(current.Status)}
	if errors.Is(err, scheduler.ErrAlreadyCancelled) {
		return newBookingError(ErrAlreadyCancelled, details, "reservation %s is already cancelled", current.ID)
	}
	return newBookingError(ErrInvalidTransition, details, "cannot %s reservation %s while it is %s", event, current.ID, current.Status)
}

func mapTransitionRepoError(err error, current persistence.Reservation, event scheduler.Event) error {
	var stale *persistence.StaleStatusError
	if errors.As(err, &stale) && event == scheduler.EventCancel && stale.Current == scheduler.StatusCancelled {
		return newBookingError(ErrAlreadyCancelled, map[string]string{"reservation_id": current.ID, "status": string(stale.Current)},
			"reservation %s is already cancelled", current.ID)
	}
	if errors.Is(err, persistence.ErrStaleWrite) {
		return newBookingError(ErrInvalidTransition, map[string]string{"reservation_id": current.ID},
			"reservation %s changed while trying to %s it", current.ID, event)
	}
	return mapBookingRepoError(err)
}

// ListMyReservations returns the caller's reservations and fixed assignments.
func (s *BookingService) ListMyReservations(ctx context.Context, params ListMyReservationsParams) (result BookingList, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ListMyReservations", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "listing failed", err)
			return
		}
		logger.DebugContext(ctx, "listed bookings", "reservations", len(result.Reservations), "fixed_assignments", len(result.FixedAssignments))
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}
	if err = validateListFilter(params.Statuses, params.Range); err != nil {
		return
	}

	return s.list(ctx,
		persistence.ReservationFilter{UserID: params.Principal.UserID, Statuses: params.Statuses, Overlapping: params.Range},
		persistence.AssignmentFilter{UserID: params.Principal.UserID, Overlapping: params.Range},
		includeAssignments(params.Statuses),
	)
}

// ListRoomReservations returns the bookings of a room. Members and admins of
// the room may list it.
func (s *BookingService) ListRoomReservations(ctx context.Context, params ListRoomReservationsParams) (result BookingList, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ListRoomReservations", "principal_id", params.Principal.UserID, "room_id", params.RoomID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "listing failed", err)
			return
		}
		logger.DebugContext(ctx, "listed bookings", "reservations", len(result.Reservations), "fixed_assignments", len(result.FixedAssignments))
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(params.RoomID) == "" {
		vErr.add("room_id", "room_id is required")
	}
	vErr.merge(listFilterErrors(params.Statuses, params.Range))
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if _, err = s.cells.GetRoom(ctx, params.RoomID); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if err = s.access.requireRoomAccess(ctx, params.Principal, params.RoomID, "view its reservations"); err != nil {
		return
	}

	rooms := []string{params.RoomID}
	return s.list(ctx,
		persistence.ReservationFilter{RoomIDs: rooms, Statuses: params.Statuses, Overlapping: params.Range},
		persistence.AssignmentFilter{RoomIDs: rooms, Overlapping: params.Range},
		includeAssignments(params.Statuses),
	)
}

func (s *BookingService) list(ctx context.Context, rf persistence.ReservationFilter, af persistence.AssignmentFilter, withAssignments bool) (BookingList, error) {
	reservations, err := s.store.ListReservations(ctx, rf)
	if err != nil {
		return BookingList{}, mapBookingRepoError(err)
	}
	result := BookingList{Reservations: toReservations(reservations), FixedAssignments: []FixedAssignment{}}
	if withAssignments {
		assignments, err := s.store.ListFixedAssignments(ctx, af)
		if err != nil {
			return BookingList{}, mapBookingRepoError(err)
		}
		result.FixedAssignments = toFixedAssignments(assignments)
	}
	return result, nil
}

// ListPendingApprovals returns pending reservations in the rooms the caller administers.
func (s *BookingService) ListPendingApprovals(ctx context.Context, params ListPendingApprovalsParams) (result []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ListPendingApprovals", "principal_id", params.Principal.UserID, "room_id", params.RoomID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "listing failed", err)
			return
		}
		logger.DebugContext(ctx, "listed pending approvals", "count", len(result))
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}

	filter := persistence.ReservationFilter{Statuses: []scheduler.Status{scheduler.StatusPending}}
	if params.RoomID != "" {
		if err = s.access.requireRoomAdmin(ctx, params.Principal, params.RoomID, "review its approvals"); err != nil {
			return
		}
		filter.RoomIDs = []string{params.RoomID}
	} else {
		var (
			rooms []string
			all   bool
		)
		if rooms, all, err = s.access.AdministeredRooms(ctx, params.Principal); err != nil {
			return
		}
		if !all {
			if len(rooms) == 0 {
				result = []Reservation{}
				return
			}
			filter.RoomIDs = rooms
		}
	}

	var pending []persistence.Reservation
	if pending, err = s.store.ListReservations(ctx, filter); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	result = toReservations(pending)
	return
}

// CheckAvailability reports, per cell and day, which segments are still free
// and who holds the others. Only approved reservations and fixed assignments
// occupy a cell.
func (s *BookingService) CheckAvailability(ctx context.Context, params CheckAvailabilityParams) (result []CellAvailability, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CheckAvailability",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"cell_id", params.CellID,
		"range", params.Range.String(),
	)
	cached := false
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "availability check failed", err)
			return
		}
		logger.DebugContext(ctx, "availability computed", "cells", len(result), "cached", cached)
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(params.RoomID) == "" {
		vErr.add("room_id", "room_id is required")
	}
	validateRange(params.Range, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if err = checkSpan(params.Range, s.maxRangeDays); err != nil {
		return
	}
	if _, err = s.cells.GetRoom(ctx, params.RoomID); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if err = s.access.requireRoomAccess(ctx, params.Principal, params.RoomID, "view its availability"); err != nil {
		return
	}

	key := availabilityKey(params.RoomID, params.CellID, params.Range)
	if hit, ok := s.cache.Get(key); ok {
		cached = true
		result = hit
		return
	}

	generation := s.cache.Generation(params.RoomID)
	var cells []persistence.Cell
	if params.CellID != "" {
		var cell persistence.Cell
		if cell, err = s.cells.GetCell(ctx, params.CellID); err != nil {
			err = mapBookingRepoError(err)
			return
		}
		if cell.RoomID != params.RoomID {
			err = ErrNotFound
			return
		}
		cells = []persistence.Cell{cell}
	} else if cells, err = s.cells.ListCells(ctx, params.RoomID); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	rooms := []string{params.RoomID}
	var (
		reservations []persistence.Reservation
		assignments  []persistence.FixedAssignment
	)
	reservations, err = s.store.ListReservations(ctx, persistence.ReservationFilter{
		CellID:      params.CellID,
		RoomIDs:     rooms,
		Statuses:    []scheduler.Status{scheduler.StatusApproved},
		Overlapping: &params.Range,
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	assignments, err = s.store.ListFixedAssignments(ctx, persistence.AssignmentFilter{
		CellID:      params.CellID,
		RoomIDs:     rooms,
		Overlapping: &params.Range,
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	result = buildAvailability(cells, collectBookings(reservations, assignments), params.Range)
	if !s.cache.Store(key, params.RoomID, generation, result) {
		logger.DebugContext(ctx, "availability not cached, room changed during the read")
	}
	return
}

func buildAvailability(cells []persistence.Cell, bookings []scheduler.Booking, r scheduler.Range) []CellAvailability {
	byCell := make(map[string][]scheduler.Booking)
	for _, b := range bookings {
		byCell[b.CellID] = append(byCell[b.CellID], b)
	}

	out := make([]CellAvailability, 0, len(cells))
	for _, cell := range cells {
		entry := CellAvailability{CellID: cell.ID, RoomID: cell.RoomID, Label: cloneString(cell.Label)}
		for day := range r.Days() {
			taken := map[scheduler.Segment]bool{}
			var occupants []Occupant
			for _, b := range byCell[cell.ID] {
				if !b.Range.Contains(day) {
					continue
				}
				for _, half := range b.Segment.Halves() {
					taken[half] = true
				}
				occupants = append(occupants, Occupant{Kind: b.Kind, ID: b.ID, UserID: b.UserID, Segment: b.Segment, Status: b.Status})
			}
			free := []scheduler.Segment{}
			for _, half := range scheduler.SegmentFull.Halves() {
				if !taken[half] {
					free = append(free, half)
				}
			}
			if len(free) == 2 {
				free = append(free, scheduler.SegmentFull)
			}
			entry.Days = append(entry.Days, DayAvailability{Date: day, Free: free, Occupants: occupants})
		}
		out = append(out, entry)
	}
	return out
}

func validateListFilter(statuses []scheduler.Status, r *scheduler.Range) error {
	if vErr := listFilterErrors(statuses, r); vErr.HasErrors() {
		return vErr
	}
	return nil
}

func listFilterErrors(statuses []scheduler.Status, r *scheduler.Range) *ValidationError {
	vErr := &ValidationError{}
	for _, st := range statuses {
		if !st.Valid() {
			vErr.add("statuses", fmt.Sprintf("unknown status %q", st))
		}
	}
	if r != nil {
		validateRange(*r, vErr)
	}
	return vErr
}

// includeAssignments reports whether fixed assignments match the status
// filter. They count as approved.
func includeAssignments(statuses []scheduler.Status) bool {
	return len(statuses) == 0 || slices.Contains(statuses, scheduler.StatusApproved)
}

func ensureActiveUser(ctx context.Context, users UserDirectory, userID string) error {
	if users == nil {
		return fmt.Errorf("user directory not configured")
	}
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return newBookingError(ErrNotFound, map[string]string{"user_id": userID}, "user %s does not exist", userID)
		}
		return err
	}
	if !user.Active {
		return fieldError("user_id", "user is inactive")
	}
	return nil
}

// logFailure logs refusals the caller can act on at warn level and
// everything else as an error.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	if kind == KindUnexpected {
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
		return
	}
	logger.WarnContext(ctx, msg, "error", err, "error_kind", kind)
}
