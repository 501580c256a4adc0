package scheduler

// CellClaim reserves one half-day of a cell. The store keeps claims unique on
// (CellID, Day, Half) so two writers racing for the same slot cannot both win.
type CellClaim struct {
	CellID    string
	Day       Date
	Half      Segment
	OwnerKind BookingKind
	OwnerID   string
}

// UserClaim reserves one calendar day of a user, unique on (UserID, Day).
type UserClaim struct {
	UserID    string
	Day       Date
	OwnerKind BookingKind
	OwnerID   string
}

// Claims groups the rows a booking must hold while it is active.
type Claims struct {
	Cells []CellClaim
	Users []UserClaim
}

// Empty reports whether there is nothing to claim.
func (c Claims) Empty() bool {
	return len(c.Cells) == 0 && len(c.Users) == 0
}

// CellClaimsFor expands a booking into per-day, per-half cell claims.
func CellClaimsFor(b Booking) []CellClaim {
	halves := b.Segment.Halves()
	out := make([]CellClaim, 0, b.Range.Len()*len(halves))
	for day := range b.Range.Days() {
		for _, half := range halves {
			out = append(out, CellClaim{
				CellID:    b.CellID,
				Day:       day,
				Half:      half,
				OwnerKind: b.Kind,
				OwnerID:   b.ID,
			})
		}
	}
	return out
}

// UserClaimsFor expands a booking into one user claim per day.
func UserClaimsFor(b Booking) []UserClaim {
	out := make([]UserClaim, 0, b.Range.Len())
	for day := range b.Range.Days() {
		out = append(out, UserClaim{
			UserID:    b.UserID,
			Day:       day,
			OwnerKind: b.Kind,
			OwnerID:   b.ID,
		})
	}
	return out
}

// ClaimsFor returns everything a booking holds in its current status. Fixed
// assignments and approved reservations hold the cell and the user's days;
// pending reservations hold only the days; inactive ones hold nothing.
func ClaimsFor(b Booking) Claims {
	if b.Kind == KindReservation && !b.Status.Active() {
		return Claims{}
	}
	claims := Claims{Users: UserClaimsFor(b)}
	if b.Kind == KindFixedAssignment || b.Status.HoldsCell() {
		claims.Cells = CellClaimsFor(b)
	}
	return claims
}
