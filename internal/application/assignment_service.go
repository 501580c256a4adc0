package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/recurrence"
	"github.com/example/desk-booking/internal/scheduler"
)

// FixedAssignmentParams describes a standing assignment of a cell to a user.
type FixedAssignmentParams struct {
	Principal Principal
	CellID    string
	UserID    string
	Range     scheduler.Range
}

// AssignDaysParams describes an assignment materialized as one approved FULL
// reservation per selected day. An empty Weekdays selects every day.
type AssignDaysParams struct {
	Principal Principal
	CellID    string
	UserID    string
	Range     scheduler.Range
	Weekdays  []time.Weekday
}

// ReleaseAssignmentParams deletes a fixed assignment, or only one of its days
// when Day is set.
type ReleaseAssignmentParams struct {
	Principal    Principal
	AssignmentID string
	Day          *scheduler.Date
}

// AssignmentServiceDeps wires an AssignmentService.
type AssignmentServiceDeps struct {
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

// AssignmentService manages fixed assignments: creation, day release with
// range splitting, and expansion into daily reservations.
type AssignmentService struct {
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

// NewAssignmentService wires dependencies for fixed assignment operations.
func NewAssignmentService(deps AssignmentServiceDeps) *AssignmentService {
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
	return &AssignmentService{
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

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// prepare runs the checks shared by both assignment paths and returns the target cell.
func (s *AssignmentService) prepare(ctx context.Context, principal Principal, cellID, userID string, r scheduler.Range) (persistence.Cell, error) {
	if !principal.authenticated() {
		return persistence.Cell{}, ErrUnauthenticated
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(cellID) == "" {
		vErr.add("cell_id", "cell_id is required")
	}
	if strings.TrimSpace(userID) == "" {
		vErr.add("user_id", "user_id is required")
	}
	validateRange(r, vErr)
	if vErr.HasErrors() {
		return persistence.Cell{}, vErr
	}

	cell, err := s.cells.GetCell(ctx, cellID)
	if err != nil {
		return persistence.Cell{}, mapBookingRepoError(err)
	}
	if err := s.access.requireRoomAdmin(ctx, principal, cell.RoomID, "assign desks"); err != nil {
		return persistence.Cell{}, err
	}
	if err := ensureActiveUser(ctx, s.users, userID); err != nil {
		return persistence.Cell{}, err
	}
	if err := checkAssignmentSpan(r, s.maxRangeDays); err != nil {
		return persistence.Cell{}, err
	}
	return cell, nil
}

// CreateFixedAssignment gives a cell to a user for a range of days. The cell
// must be free of other fixed assignments and approved reservations over the
// whole range, and the user must have no other booking on those days.
func (s *AssignmentService) CreateFixedAssignment(ctx context.Context, params FixedAssignmentParams) (result FixedAssignment, err error) {
	if s == nil {
		err = fmt.Errorf("AssignmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateFixedAssignment",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"cell_id", params.CellID,
		"range", params.Range.String(),
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "fixed assignment refused", err)
			return
		}
		logger.InfoContext(ctx, "fixed assignment created", "assignment_id", result.ID)
	}()

	var cell persistence.Cell
	if cell, err = s.prepare(ctx, params.Principal, params.CellID, params.UserID, params.Range); err != nil {
		return
	}

	var existing []scheduler.Booking
	if existing, err = s.cellBookings(ctx, cell.ID, params.Range); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	for _, b := range existing {
		if b.Kind != scheduler.KindFixedAssignment {
			continue
		}
		if shared, ok := b.Range.Intersect(params.Range); ok {
			err = conflictError(scheduler.Conflict{Type: scheduler.ConflictFixedAssignment, With: b, Day: shared.Start})
			return
		}
	}
	if conflict, found := scheduler.DetectCellConflict(existing, scheduler.Candidate{
		CellID:  cell.ID,
		UserID:  params.UserID,
		Range:   params.Range,
		Segment: scheduler.SegmentFull,
	}); found {
		err = conflictError(conflict)
		return
	}
	if err = s.checkUserDailyExclusivity(ctx, params.UserID, params.Range); err != nil {
		return
	}

	now := s.now()
	model := persistence.FixedAssignment{
		ID:         s.idGenerator(),
		CellID:     cell.ID,
		RoomID:     cell.RoomID,
		AssignedTo: params.UserID,
		DateStart:  params.Range.Start,
		DateEnd:    params.Range.End,
		CreatedBy:  params.Principal.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.store.CreateFixedAssignment(ctx, model, scheduler.ClaimsFor(assignmentBooking(model))); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	s.cache.InvalidateRoom(cell.RoomID)

	result = toFixedAssignment(model)
	return
}

// AssignDays materializes an assignment as approved FULL reservations, one
// per selected day. Every day is checked before anything is written and the
// batch is stored atomically.
func (s *AssignmentService) AssignDays(ctx context.Context, params AssignDaysParams) (result []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("AssignmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AssignDays",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"cell_id", params.CellID,
		"range", params.Range.String(),
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "day assignment refused", err)
			return
		}
		logger.InfoContext(ctx, "days assigned", "reservations", len(result))
	}()

	var cell persistence.Cell
	if cell, err = s.prepare(ctx, params.Principal, params.CellID, params.UserID, params.Range); err != nil {
		return
	}

	rule := recurrence.RuleFor(params.Range, params.Weekdays)
	template := scheduler.AssignmentSpec{
		CellID:    cell.ID,
		RoomID:    cell.RoomID,
		UserID:    params.UserID,
		CreatedBy: params.Principal.UserID,
		Range:     params.Range,
	}

	var cellExisting, userExisting []scheduler.Booking
	if cellExisting, err = s.cellBookings(ctx, cell.ID, params.Range); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if userExisting, err = s.userBookings(ctx, params.UserID, params.Range); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	now := s.now()
	approver := params.Principal.UserID
	var writes []persistence.ReservationWrite
	for draft := range scheduler.ExpandAssignment(template, rule.Includes) {
		day := scheduler.SingleDay(draft.Day)
		if conflict, found := scheduler.DetectCellConflict(cellExisting, scheduler.Candidate{
			CellID: draft.CellID, UserID: draft.UserID, Range: day, Segment: draft.Segment,
		}); found {
			err = conflictError(conflict)
			return
		}
		if conflict, found := scheduler.DetectDuplicate(userExisting, draft.UserID, day); found {
			err = conflictError(conflict)
			return
		}

		model := persistence.Reservation{
			ID:         s.idGenerator(),
			CellID:     draft.CellID,
			RoomID:     draft.RoomID,
			UserID:     draft.UserID,
			DateStart:  draft.Day,
			DateEnd:    draft.Day,
			Segment:    draft.Segment,
			Status:     draft.Status,
			ApprovedBy: &approver,
			ApprovedAt: &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		writes = append(writes, persistence.ReservationWrite{
			Reservation: model,
			Claims:      scheduler.ClaimsFor(draft.Booking(model.ID)),
		})
	}
	if len(writes) == 0 {
		err = fieldError("weekdays", "no day in the range matches the selected weekdays")
		return
	}

	if err = s.store.CreateReservations(ctx, writes); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	s.cache.InvalidateRoom(cell.RoomID)

	result = make([]Reservation, 0, len(writes))
	for _, w := range writes {
		result = append(result, toReservation(w.Reservation))
	}
	return
}

// ReleaseFixedAssignment deletes an assignment, or gives up a single day of
// it: the range shrinks at either end or splits in two around an inner day.
// Room admins and the assignee may release.
func (s *AssignmentService) ReleaseFixedAssignment(ctx context.Context, params ReleaseAssignmentParams) (result AssignmentRelease, err error) {
	if s == nil {
		err = fmt.Errorf("AssignmentService is nil")
		return
	}

	attrs := []any{"principal_id", params.Principal.UserID, "assignment_id", params.AssignmentID}
	if params.Day != nil {
		attrs = append(attrs, "day", params.Day.String())
	}
	logger := s.loggerWith(ctx, "ReleaseFixedAssignment", attrs...)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "release refused", err)
			return
		}
		logger.InfoContext(ctx, "fixed assignment released", "deleted", result.Deleted, "split", result.Split != nil)
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthenticated
		return
	}
	if strings.TrimSpace(params.AssignmentID) == "" {
		err = fieldError("assignment_id", "assignment_id is required")
		return
	}

	var current persistence.FixedAssignment
	if current, err = s.store.GetFixedAssignment(ctx, params.AssignmentID); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if current.AssignedTo != params.Principal.UserID {
		if err = s.access.requireRoomAdmin(ctx, params.Principal, current.RoomID, "release another user's assignment"); err != nil {
			return
		}
	}

	result.AssignmentID = current.ID
	if params.Day == nil {
		if err = s.store.DeleteFixedAssignment(ctx, current.ID); err != nil {
			err = mapBookingRepoError(err)
			return
		}
		s.cache.InvalidateRoom(current.RoomID)
		result.Deleted = true
		return
	}

	currentRange := scheduler.Range{Start: current.DateStart, End: current.DateEnd}
	var plan scheduler.ReleasePlan
	if plan, err = scheduler.PlanDayRelease(currentRange, *params.Day); err != nil {
		if errors.Is(err, scheduler.ErrDayOutsideRange) {
			err = fieldError("date", fmt.Sprintf("%s is outside %s", params.Day, currentRange))
		}
		return
	}

	now := s.now()
	release := persistence.DayRelease{
		AssignmentID: current.ID,
		Expected:     currentRange,
		Day:          plan.Day,
		Remove:       plan.Remove,
		Keep:         plan.Keep,
		UpdatedAt:    now,
	}
	if plan.Split != nil {
		split := current
		split.ID = s.idGenerator()
		split.DateStart = plan.Split.Start
		split.DateEnd = plan.Split.End
		split.CreatedAt = now
		split.UpdatedAt = now
		release.Split = &split
	}

	if err = s.store.ReleaseFixedAssignmentDay(ctx, release); err != nil {
		err = mapBookingRepoError(err)
		return
	}
	s.cache.InvalidateRoom(current.RoomID)

	day := plan.Day
	result.Released = &day
	result.Deleted = plan.Remove
	if !plan.Remove {
		remaining := current
		remaining.DateStart = plan.Keep.Start
		remaining.DateEnd = plan.Keep.End
		remaining.UpdatedAt = now
		view := toFixedAssignment(remaining)
		result.Remaining = &view
	}
	if release.Split != nil {
		view := toFixedAssignment(*release.Split)
		result.Split = &view
	}
	return
}
