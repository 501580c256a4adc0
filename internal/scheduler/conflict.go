package scheduler

// BookingKind distinguishes the two kinds of occupant a cell can have.
type BookingKind string

const (
	KindReservation     BookingKind = "reservation"
	KindFixedAssignment BookingKind = "fixed_assignment"
)

// Booking is the common view of a reservation or fixed assignment used by the
// conflict predicates. Fixed assignments are always FULL and approved.
type Booking struct {
	Kind    BookingKind
	ID      string
	CellID  string
	RoomID  string
	UserID  string
	Range   Range
	Segment Segment
	Status  Status
}

// Candidate describes a booking that has not been stored yet.
type Candidate struct {
	CellID  string
	UserID  string
	Range   Range
	Segment Segment
}

// ConflictType describes why a candidate was refused.
type ConflictType string

const (
	// ConflictFixedAssignment means another user holds a fixed assignment on the cell.
	ConflictFixedAssignment ConflictType = "fixed_assignment"
	// ConflictSlot means an approved reservation occupies a colliding segment.
	ConflictSlot ConflictType = "slot"
	// ConflictDuplicate means the user already has an active booking that day.
	ConflictDuplicate ConflictType = "duplicate"
)

// Conflict names the existing booking that blocks a candidate and the first
// day they collide on.
type Conflict struct {
	Type ConflictType
	With Booking
	Day  Date
}

// FixedAssignmentBooking adapts an assignment range into a Booking.
func FixedAssignmentBooking(id, cellID, roomID, userID string, r Range) Booking {
	return Booking{
		Kind:    KindFixedAssignment,
		ID:      id,
		CellID:  cellID,
		RoomID:  roomID,
		UserID:  userID,
		Range:   r,
		Segment: SegmentFull,
		Status:  StatusApproved,
	}
}

// DetectCellConflict checks the candidate against the existing bookings of
// its cell. Fixed assignments held by someone other than the candidate's user
// win over everything; after that the first approved reservation with a
// colliding segment is reported. Pending, rejected and cancelled reservations
// never block.
func DetectCellConflict(existing []Booking, candidate Candidate) (Conflict, bool) {
	for _, b := range existing {
		if b.Kind != KindFixedAssignment || b.CellID != candidate.CellID {
			continue
		}
		if b.UserID == candidate.UserID {
			continue
		}
		if shared, ok := b.Range.Intersect(candidate.Range); ok {
			return Conflict{Type: ConflictFixedAssignment, With: b, Day: shared.Start}, true
		}
	}
	for _, b := range existing {
		if b.Kind != KindReservation || b.CellID != candidate.CellID {
			continue
		}
		if !b.Status.HoldsCell() || !SegmentsConflict(b.Segment, candidate.Segment) {
			continue
		}
		if shared, ok := b.Range.Intersect(candidate.Range); ok {
			return Conflict{Type: ConflictSlot, With: b, Day: shared.Start}, true
		}
	}
	return Conflict{}, false
}

// DetectDuplicate checks the one-booking-per-user-per-day rule. Every active
// booking of the user in any room counts, regardless of segment.
func DetectDuplicate(existing []Booking, userID string, r Range) (Conflict, bool) {
	for _, b := range existing {
		if b.UserID != userID {
			continue
		}
		if b.Kind == KindReservation && !b.Status.Active() {
			continue
		}
		if shared, ok := b.Range.Intersect(r); ok {
			return Conflict{Type: ConflictDuplicate, With: b, Day: shared.Start}, true
		}
	}
	return Conflict{}, false
}
