// Package memory provides a map-backed persistence.Store for development and
// tests. It enforces the same claim uniqueness as the SQL schema so the booking
// invariants hold without a database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// Claim keys use the YYYY-MM-DD form of the day, which also orders correctly.
type cellKey struct {
	cellID string
	day    string
	half   scheduler.Segment
}

type userKey struct {
	userID string
	day    string
}

type owner struct {
	kind scheduler.BookingKind
	id   string
}

// Storage is an in-memory persistence.Store.
type Storage struct {
	mu           sync.RWMutex
	users        map[string]persistence.User
	rooms        map[string]persistence.Room
	cells        map[string]persistence.Cell
	access       map[[2]string]persistence.RoomAccess
	reservations map[string]persistence.Reservation
	assignments  map[string]persistence.FixedAssignment
	sessions     map[string]persistence.Session
	cellClaims   map[cellKey]owner
	userClaims   map[userKey]owner
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:        make(map[string]persistence.User),
		rooms:        make(map[string]persistence.Room),
		cells:        make(map[string]persistence.Cell),
		access:       make(map[[2]string]persistence.RoomAccess),
		reservations: make(map[string]persistence.Reservation),
		assignments:  make(map[string]persistence.FixedAssignment),
		sessions:     make(map[string]persistence.Session),
		cellClaims:   make(map[cellKey]owner),
		userClaims:   make(map[userKey]owner),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Storage) Close() error { return nil }

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s", persistence.ErrDuplicate, user.ID)
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}
	s.users[user.ID] = user
	return nil
}

// UpdateUser replaces an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	for existingID, user := range s.users {
		if existingID != id && strings.EqualFold(user.Email, email) {
			return fmt.Errorf("%w: email %s", persistence.ErrDuplicate, email)
		}
	}
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("%w: room %s", persistence.ErrDuplicate, room.ID)
	}
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// CreateCell stores a cell; coordinates are unique within a room.
func (s *Storage) CreateCell(ctx context.Context, cell persistence.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[cell.RoomID]; !ok {
		return fmt.Errorf("%w: room %s does not exist", persistence.ErrConstraintViolation, cell.RoomID)
	}
	if _, ok := s.cells[cell.ID]; ok {
		return fmt.Errorf("%w: cell %s", persistence.ErrDuplicate, cell.ID)
	}
	for _, existing := range s.cells {
		if existing.RoomID == cell.RoomID && existing.Row == cell.Row && existing.Col == cell.Col {
			return fmt.Errorf("%w: cell at %d,%d", persistence.ErrDuplicate, cell.Row, cell.Col)
		}
	}
	s.cells[cell.ID] = cell
	return nil
}

// GetCell retrieves a cell by ID.
func (s *Storage) GetCell(ctx context.Context, id string) (persistence.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cell, ok := s.cells[id]
	if !ok {
		return persistence.Cell{}, persistence.ErrNotFound
	}
	return cell, nil
}

// ListCells returns the cells of a room in row-major order.
func (s *Storage) ListCells(ctx context.Context, roomID string) ([]persistence.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := make([]persistence.Cell, 0)
	for _, cell := range s.cells {
		if cell.RoomID == roomID {
			cells = append(cells, cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row == cells[j].Row {
			return cells[i].Col < cells[j].Col
		}
		return cells[i].Row < cells[j].Row
	})
	return cells, nil
}

// --- RoomAccessRepository implementation ---

// UpsertRoomAccess creates or replaces a grant.
func (s *Storage) UpsertRoomAccess(ctx context.Context, access persistence.RoomAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[access.RoomID]; !ok {
		return fmt.Errorf("%w: room %s does not exist", persistence.ErrConstraintViolation, access.RoomID)
	}
	if _, ok := s.users[access.UserID]; !ok {
		return fmt.Errorf("%w: user %s does not exist", persistence.ErrConstraintViolation, access.UserID)
	}
	key := [2]string{access.RoomID, access.UserID}
	if existing, ok := s.access[key]; ok {
		access.CreatedAt = existing.CreatedAt
	}
	s.access[key] = access
	return nil
}

// DeleteRoomAccess removes a grant.
func (s *Storage) DeleteRoomAccess(ctx context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{roomID, userID}
	if _, ok := s.access[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.access, key)
	return nil
}

// GetRoomAccess retrieves the grant of a user on a room.
func (s *Storage) GetRoomAccess(ctx context.Context, roomID, userID string) (persistence.RoomAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, ok := s.access[[2]string{roomID, userID}]
	if !ok {
		return persistence.RoomAccess{}, persistence.ErrNotFound
	}
	return access, nil
}

// ListRoomAccessForUser returns all grants of a user ordered by room.
func (s *Storage) ListRoomAccessForUser(ctx context.Context, userID string) ([]persistence.RoomAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grants := make([]persistence.RoomAccess, 0)
	for _, access := range s.access {
		if access.UserID == userID {
			grants = append(grants, access)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].RoomID < grants[j].RoomID })
	return grants, nil
}

// --- ReservationRepository implementation ---

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// ListReservations returns matching reservations ordered by start date then creation.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Reservation, 0)
	for _, r := range s.reservations {
		if matchesReservationFilter(r, filter) {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].DateStart.Compare(out[j].DateStart); c != 0 {
			return c < 0
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateReservations inserts every write and its claims, or nothing.
func (s *Storage) CreateReservations(ctx context.Context, writes []persistence.ReservationWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all scheduler.Claims
	for _, w := range writes {
		if _, ok := s.reservations[w.Reservation.ID]; ok {
			return fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, w.Reservation.ID)
		}
		if _, ok := s.cells[w.Reservation.CellID]; !ok {
			return fmt.Errorf("%w: cell %s does not exist", persistence.ErrConstraintViolation, w.Reservation.CellID)
		}
		all.Cells = append(all.Cells, w.Claims.Cells...)
		all.Users = append(all.Users, w.Claims.Users...)
	}
	if err := s.checkClaimsLocked(all); err != nil {
		return err
	}
	for _, w := range writes {
		s.reservations[w.Reservation.ID] = cloneReservation(w.Reservation)
	}
	s.applyClaimsLocked(all)
	return nil
}

// ChangeReservationStatus applies a conditional status change.
func (s *Storage) ChangeReservationStatus(ctx context.Context, change persistence.StatusChange) (persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.reservations[change.ID]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if current.Status != change.From {
		return persistence.Reservation{}, &persistence.StaleStatusError{ReservationID: change.ID, Current: current.Status}
	}
	if err := s.checkClaimsLocked(change.Acquire); err != nil {
		return persistence.Reservation{}, err
	}

	if change.Release {
		s.releaseOwnerLocked(change.ID, nil)
	}
	s.applyClaimsLocked(change.Acquire)

	current.Status = change.To
	if change.ApprovedBy != nil {
		current.ApprovedBy = ptr(*change.ApprovedBy)
	}
	if change.ApprovedAt != nil {
		current.ApprovedAt = ptr(*change.ApprovedAt)
	}
	current.UpdatedAt = change.UpdatedAt
	s.reservations[change.ID] = current
	return cloneReservation(current), nil
}

// --- FixedAssignmentRepository implementation ---

// GetFixedAssignment retrieves a fixed assignment by ID.
func (s *Storage) GetFixedAssignment(ctx context.Context, id string) (persistence.FixedAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return persistence.FixedAssignment{}, persistence.ErrNotFound
	}
	return a, nil
}

// ListFixedAssignments returns matching assignments ordered by start date.
func (s *Storage) ListFixedAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.FixedAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.FixedAssignment, 0)
	for _, a := range s.assignments {
		if matchesAssignmentFilter(a, filter) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].DateStart.Compare(out[j].DateStart); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateFixedAssignment inserts an assignment and its claims atomically.
func (s *Storage) CreateFixedAssignment(ctx context.Context, assignment persistence.FixedAssignment, claims scheduler.Claims) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[assignment.ID]; ok {
		return fmt.Errorf("%w: fixed assignment %s", persistence.ErrDuplicate, assignment.ID)
	}
	if _, ok := s.cells[assignment.CellID]; !ok {
		return fmt.Errorf("%w: cell %s does not exist", persistence.ErrConstraintViolation, assignment.CellID)
	}
	if err := s.checkClaimsLocked(claims); err != nil {
		return err
	}
	s.assignments[assignment.ID] = assignment
	s.applyClaimsLocked(claims)
	return nil
}

// ReleaseFixedAssignmentDay narrows, splits or removes an assignment.
func (s *Storage) ReleaseFixedAssignmentDay(ctx context.Context, release persistence.DayRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.assignments[release.AssignmentID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !current.DateStart.Equal(release.Expected.Start) || !current.DateEnd.Equal(release.Expected.End) {
		return fmt.Errorf("%w: fixed assignment %s changed", persistence.ErrStaleWrite, release.AssignmentID)
	}
	if release.Split != nil {
		if _, exists := s.assignments[release.Split.ID]; exists {
			return fmt.Errorf("%w: fixed assignment %s", persistence.ErrDuplicate, release.Split.ID)
		}
	}

	day := release.Day.String()
	s.releaseOwnerLocked(current.ID, func(d string) bool { return d == day })

	if release.Remove {
		delete(s.assignments, current.ID)
		return nil
	}

	current.DateStart = release.Keep.Start
	current.DateEnd = release.Keep.End
	current.UpdatedAt = release.UpdatedAt
	s.assignments[current.ID] = current

	if release.Split != nil {
		s.assignments[release.Split.ID] = *release.Split
		s.repointOwnerLocked(current.ID, release.Split.ID, day)
	}
	return nil
}

// DeleteFixedAssignment removes an assignment and every claim it holds.
func (s *Storage) DeleteFixedAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.assignments, id)
	s.releaseOwnerLocked(id, nil)
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.TokenDigest == session.TokenDigest {
			return fmt.Errorf("%w: session token", persistence.ErrDuplicate)
		}
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSessionByDigest retrieves a session by token digest.
func (s *Storage) GetSessionByDigest(ctx context.Context, digest string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.TokenDigest == digest {
			return session, nil
		}
	}
	return persistence.Session{}, persistence.ErrNotFound
}

// RevokeSession marks a session revoked.
func (s *Storage) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[id] = session
	return nil
}

// DeleteExpiredSessions removes sessions that expired before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// --- claims ---

func (s *Storage) checkClaimsLocked(claims scheduler.Claims) error {
	seenCells := make(map[cellKey]struct{}, len(claims.Cells))
	for _, c := range claims.Cells {
		key := cellKey{cellID: c.CellID, day: c.Day.String(), half: c.Half}
		if _, taken := s.cellClaims[key]; taken {
			return fmt.Errorf("%w: cell %s on %s %s", persistence.ErrCellSlotTaken, c.CellID, c.Day, c.Half)
		}
		if _, dup := seenCells[key]; dup {
			return fmt.Errorf("%w: cell %s on %s %s", persistence.ErrCellSlotTaken, c.CellID, c.Day, c.Half)
		}
		seenCells[key] = struct{}{}
	}
	seenUsers := make(map[userKey]struct{}, len(claims.Users))
	for _, c := range claims.Users {
		key := userKey{userID: c.UserID, day: c.Day.String()}
		if _, taken := s.userClaims[key]; taken {
			return fmt.Errorf("%w: user %s on %s", persistence.ErrUserDayTaken, c.UserID, c.Day)
		}
		if _, dup := seenUsers[key]; dup {
			return fmt.Errorf("%w: user %s on %s", persistence.ErrUserDayTaken, c.UserID, c.Day)
		}
		seenUsers[key] = struct{}{}
	}
	return nil
}

func (s *Storage) applyClaimsLocked(claims scheduler.Claims) {
	for _, c := range claims.Cells {
		s.cellClaims[cellKey{cellID: c.CellID, day: c.Day.String(), half: c.Half}] = owner{kind: c.OwnerKind, id: c.OwnerID}
	}
	for _, c := range claims.Users {
		s.userClaims[userKey{userID: c.UserID, day: c.Day.String()}] = owner{kind: c.OwnerKind, id: c.OwnerID}
	}
}

// releaseOwnerLocked drops claims owned by id, restricted to days accepted by
// match when it is non-nil.
func (s *Storage) releaseOwnerLocked(id string, match func(day string) bool) {
	for key, o := range s.cellClaims {
		if o.id == id && (match == nil || match(key.day)) {
			delete(s.cellClaims, key)
		}
	}
	for key, o := range s.userClaims {
		if o.id == id && (match == nil || match(key.day)) {
			delete(s.userClaims, key)
		}
	}
}

func (s *Storage) repointOwnerLocked(from, to string, after string) {
	for key, o := range s.cellClaims {
		if o.id == from && key.day > after {
			s.cellClaims[key] = owner{kind: o.kind, id: to}
		}
	}
	for key, o := range s.userClaims {
		if o.id == from && key.day > after {
			s.userClaims[key] = owner{kind: o.kind, id: to}
		}
	}
}

// --- helpers ---

func matchesReservationFilter(r persistence.Reservation, f persistence.ReservationFilter) bool {
	if f.CellID != "" && r.CellID != f.CellID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if len(f.RoomIDs) > 0 && !slices.Contains(f.RoomIDs, r.RoomID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Overlapping != nil && !scheduler.Overlaps(r.DateStart, r.DateEnd, f.Overlapping.Start, f.Overlapping.End) {
		return false
	}
	return true
}

func matchesAssignmentFilter(a persistence.FixedAssignment, f persistence.AssignmentFilter) bool {
	if f.CellID != "" && a.CellID != f.CellID {
		return false
	}
	if f.UserID != "" && a.AssignedTo != f.UserID {
		return false
	}
	if len(f.RoomIDs) > 0 && !slices.Contains(f.RoomIDs, a.RoomID) {
		return false
	}
	if f.Overlapping != nil && !scheduler.Overlaps(a.DateStart, a.DateEnd, f.Overlapping.Start, f.Overlapping.End) {
		return false
	}
	return true
}

func cloneReservation(r persistence.Reservation) persistence.Reservation {
	if r.ApprovedBy != nil {
		r.ApprovedBy = ptr(*r.ApprovedBy)
	}
	if r.ApprovedAt != nil {
		r.ApprovedAt = ptr(*r.ApprovedAt)
	}
	return r
}

func ptr[T any](v T) *T { return &v }
