package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/desk-booking/internal/persistence"
)

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        string
	Active      bool
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	GridRows int
	GridCols int
}

// CellInput places a desk in a room grid.
type CellInput struct {
	RoomID string
	Row    int
	Col    int
	Label  *string
}

// AccessInput grants a user a role on a room.
type AccessInput struct {
	RoomID string
	UserID string
	Role   string
}

// DirectoryService administers users, rooms, cells and room grants. Every
// mutation requires a global admin.
type DirectoryService struct {
	store       DirectoryStore
	cache       *AvailabilityCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(store DirectoryStore, cache *AvailabilityCache, idGenerator func() string, now func() time.Time) *DirectoryService {
	return NewDirectoryServiceWithLogger(store, cache, idGenerator, now, nil)
}

// NewDirectoryServiceWithLogger constructs a DirectoryService with a specified logger.
func NewDirectoryServiceWithLogger(store DirectoryStore, cache *AvailabilityCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DirectoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DirectoryService{
		store:       store,
		cache:       cache,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

func (s *DirectoryService) ready(principal Principal) error {
	if s == nil {
		return fmt.Errorf("DirectoryService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("directory store not configured")
	}
	if !principal.authenticated() {
		return ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CreateUser registers a user in the directory.
func (s *DirectoryService) CreateUser(ctx context.Context, principal Principal, input UserInput) (result User, err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateUser", "principal_id", principal.UserID, "email", input.Email)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "user creation failed", err)
			return
		}
		logger.InfoContext(ctx, "user created", "user_id", result.ID)
	}()

	normalized, vErr := validateUserInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	model := persistence.User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		Role:        normalized.Role,
		Active:      normalized.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.store.CreateUser(ctx, model); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	result = toUser(model)
	return
}

// UpdateUser replaces a user's attributes.
func (s *DirectoryService) UpdateUser(ctx context.Context, principal Principal, userID string, input UserInput) (result User, err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "UpdateUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "user update failed", err)
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	normalized, vErr := validateUserInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing persistence.User
	if existing, err = s.store.GetUser(ctx, userID); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	existing.Email = normalized.Email
	existing.DisplayName = normalized.DisplayName
	existing.Role = normalized.Role
	existing.Active = normalized.Active
	existing.UpdatedAt = s.now()
	if err = s.store.UpdateUser(ctx, existing); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	result = toUser(existing)
	return
}

// ListUsers returns every user.
func (s *DirectoryService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	models, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	out := make([]User, 0, len(models))
	for _, m := range models {
		out = append(out, toUser(m))
	}
	return out, nil
}

// CreateRoom adds a room with an empty grid.
func (s *DirectoryService) CreateRoom(ctx context.Context, principal Principal, input RoomInput) (result Room, err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateRoom", "principal_id", principal.UserID, "name", input.Name)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "room creation failed", err)
			return
		}
		logger.InfoContext(ctx, "room created", "room_id", result.ID)
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if input.GridRows <= 0 {
		vErr.add("grid_rows", "grid_rows must be positive")
	}
	if input.GridCols <= 0 {
		vErr.add("grid_cols", "grid_cols must be positive")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	model := persistence.Room{ID: s.idGenerator(), Name: name, GridRows: input.GridRows, GridCols: input.GridCols, CreatedAt: now, UpdatedAt: now}
	if err = s.store.CreateRoom(ctx, model); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	result = toRoom(model)
	return
}

// ListRooms returns every room.
func (s *DirectoryService) ListRooms(ctx context.Context, principal Principal) ([]Room, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	models, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	out := make([]Room, 0, len(models))
	for _, m := range models {
		out = append(out, toRoom(m))
	}
	return out, nil
}

// CreateCell places a desk inside the room grid.
func (s *DirectoryService) CreateCell(ctx context.Context, principal Principal, input CellInput) (result Cell, err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateCell", "principal_id", principal.UserID, "room_id", input.RoomID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "cell creation failed", err)
			return
		}
		logger.InfoContext(ctx, "cell created", "cell_id", result.ID)
	}()

	var room persistence.Room
	if room, err = s.store.GetRoom(ctx, input.RoomID); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	vErr := &ValidationError{}
	if input.Row < 0 || input.Row >= room.GridRows {
		vErr.add("row", fmt.Sprintf("row must be between 0 and %d", room.GridRows-1))
	}
	if input.Col < 0 || input.Col >= room.GridCols {
		vErr.add("col", fmt.Sprintf("col must be between 0 and %d", room.GridCols-1))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	model := persistence.Cell{
		ID:        s.idGenerator(),
		RoomID:    room.ID,
		Row:       input.Row,
		Col:       input.Col,
		Type:      "desk",
		Label:     cloneString(input.Label),
		CreatedAt: s.now(),
	}
	if err = s.store.CreateCell(ctx, model); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	s.cache.InvalidateRoom(room.ID)
	result = toCell(model)
	return
}

// ListCells returns the cells of a room.
func (s *DirectoryService) ListCells(ctx context.Context, principal Principal, roomID string) ([]Cell, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	models, err := s.store.ListCells(ctx, roomID)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	out := make([]Cell, 0, len(models))
	for _, m := range models {
		out = append(out, toCell(m))
	}
	return out, nil
}

// GrantRoomAccess creates or updates a user's role on a room.
func (s *DirectoryService) GrantRoomAccess(ctx context.Context, principal Principal, input AccessInput) (result RoomAccess, err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "GrantRoomAccess", "principal_id", principal.UserID, "room_id", input.RoomID, "user_id", input.UserID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "grant failed", err)
			return
		}
		logger.InfoContext(ctx, "access granted", "role", result.Role)
	}()

	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role != AccessAdmin && role != AccessMember {
		err = fieldError("role", "role must be admin or member")
		return
	}
	if _, err = s.store.GetRoom(ctx, input.RoomID); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	if _, err = s.store.GetUser(ctx, input.UserID); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}

	model := persistence.RoomAccess{RoomID: input.RoomID, UserID: input.UserID, Role: role, CreatedAt: s.now()}
	if err = s.store.UpsertRoomAccess(ctx, model); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	result = toRoomAccess(model)
	return
}

// RevokeRoomAccess removes a user's grant on a room.
func (s *DirectoryService) RevokeRoomAccess(ctx context.Context, principal Principal, roomID, userID string) (err error) {
	if err = s.ready(principal); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "RevokeRoomAccess", "principal_id", principal.UserID, "room_id", roomID, "user_id", userID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "revoke failed", err)
			return
		}
		logger.InfoContext(ctx, "access revoked")
	}()

	if err = s.store.DeleteRoomAccess(ctx, roomID, userID); err != nil {
		err = mapDirectoryRepoError(err)
	}
	return
}

func validateUserInput(input UserInput) (UserInput, *ValidationError) {
	vErr := &ValidationError{}
	out := UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        strings.ToLower(strings.TrimSpace(input.Role)),
		Active:      input.Active,
	}
	if out.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(out.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if out.DisplayName == "" {
		vErr.add("display_name", "display_name is required")
	}
	if out.Role == "" {
		out.Role = RoleUser
	}
	if out.Role != RoleAdmin && out.Role != RoleUser {
		vErr.add("role", "role must be admin or user")
	}
	return out, vErr
}

func mapDirectoryRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("id", "related records are missing")
	}
	return err
}
