package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/bootstrap"
	"github.com/example/desk-booking/internal/config"
	"github.com/example/desk-booking/internal/persistence"
)

// MigrateCmd applies pending migrations, or reports them with --status.
type MigrateCmd struct {
	Status bool `help:"Show applied and pending migrations without applying them."`
}

func (c *MigrateCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !c.Status {
		applied, err := bootstrap.Migrate(ctx, a.store)
		if err != nil {
			return err
		}
		fmt.Fprintf(rt.out, "applied %d migration(s)\n", applied)
		return nil
	}

	status, err := bootstrap.MigrationStatus(ctx, a.store)
	if errors.Is(err, bootstrap.ErrNoMigrations) {
		fmt.Fprintf(rt.out, "the %s store has no schema\n", a.cfg.Database.Driver)
		return nil
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tDETAIL")
	for _, m := range status.Applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(tw, "%s\tpending\t%s\n", m.Version, m.Description)
	}
	return tw.Flush()
}

// UserAddCmd registers a user.
type UserAddCmd struct {
	Email    string `arg:"" help:"Email address."`
	Name     string `help:"Display name." required:""`
	Admin    bool   `help:"Grant the global admin role."`
	Inactive bool   `help:"Create the user disabled."`
}

func (c *UserAddCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	role := application.RoleUser
	if c.Admin {
		role = application.RoleAdmin
	}
	user, err := a.services.Directory.CreateUser(ctx, operator, application.UserInput{
		Email:       c.Email,
		DisplayName: c.Name,
		Role:        role,
		Active:      !c.Inactive,
	})
	if err != nil {
		return err
	}
	return rt.printJSON(user)
}

// UserListCmd lists users.
type UserListCmd struct{}

func (c *UserListCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.services.Directory.ListUsers(ctx, operator)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.DisplayName, u.Role, u.Active)
	}
	return tw.Flush()
}

// RoomAddCmd creates a room.
type RoomAddCmd struct {
	Name string `arg:"" help:"Room name."`
	Rows int    `help:"Grid rows." default:"1"`
	Cols int    `help:"Grid columns." default:"1"`
}

func (c *RoomAddCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	room, err := a.services.Directory.CreateRoom(ctx, operator, application.RoomInput{
		Name:     c.Name,
		GridRows: c.Rows,
		GridCols: c.Cols,
	})
	if err != nil {
		return err
	}
	return rt.printJSON(room)
}

// RoomListCmd lists rooms.
type RoomListCmd struct{}

func (c *RoomListCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rooms, err := a.services.Directory.ListRooms(ctx, operator)
	if err != nil {
		return err
	}
	return rt.printJSON(rooms)
}

// CellAddCmd places a desk in a room.
type CellAddCmd struct {
	Room  string `arg:"" help:"Room id."`
	Row   int    `help:"Grid row, from 0." required:""`
	Col   int    `help:"Grid column, from 0." required:""`
	Label string `help:"Label shown on the floor plan."`
}

func (c *CellAddCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	input := application.CellInput{RoomID: c.Room, Row: c.Row, Col: c.Col}
	if label := strings.TrimSpace(c.Label); label != "" {
		input.Label = &label
	}
	cell, err := a.services.Directory.CreateCell(ctx, operator, input)
	if err != nil {
		return err
	}
	return rt.printJSON(cell)
}

// CellListCmd lists the desks of a room.
type CellListCmd struct {
	Room string `arg:"" help:"Room id."`
}

func (c *CellListCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cells, err := a.services.Directory.ListCells(ctx, operator, c.Room)
	if err != nil {
		return err
	}
	return rt.printJSON(cells)
}

// AccessGrantCmd grants a room role.
type AccessGrantCmd struct {
	Room string `arg:"" help:"Room id."`
	User string `arg:"" help:"User id."`
	Role string `help:"Room role." enum:"member,admin" default:"member"`
}

func (c *AccessGrantCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	grant, err := a.services.Directory.GrantRoomAccess(ctx, operator, application.AccessInput{
		RoomID: c.Room,
		UserID: c.User,
		Role:   c.Role,
	})
	if err != nil {
		return err
	}
	return rt.printJSON(grant)
}

// AccessRevokeCmd removes a room grant.
type AccessRevokeCmd struct {
	Room string `arg:"" help:"Room id."`
	User string `arg:"" help:"User id."`
}

func (c *AccessRevokeCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.services.Directory.RevokeRoomAccess(ctx, operator, c.Room, c.User); err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "revoked %s on %s\n", c.User, c.Room)
	return nil
}

// SessionIssueCmd prints a fresh bearer token.
type SessionIssueCmd struct {
	User string `arg:"" help:"User id."`
}

func (c *SessionIssueCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issued, err := a.services.Auth.IssueSession(ctx, c.User)
	if err != nil {
		return err
	}
	return rt.printJSON(issued)
}

// SessionRevokeCmd revokes a bearer token.
type SessionRevokeCmd struct {
	Token string `arg:"" help:"Bearer token."`
}

func (c *SessionRevokeCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.services.Auth.RevokeSession(ctx, c.Token); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "session revoked")
	return nil
}

// SessionPurgeCmd deletes expired sessions.
type SessionPurgeCmd struct{}

func (c *SessionPurgeCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.services.Auth.PurgeExpiredSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "purged %d session(s)\n", n)
	return nil
}

// DBSetDSNCmd stores a DSN in the OS keyring so it stays out of config files.
type DBSetDSNCmd struct {
	Driver string `arg:"" help:"Database driver." enum:"postgres,mysql"`
	DSN    string `arg:"" help:"Connection string."`
}

func (c *DBSetDSNCmd) Run(rt *runtime) error {
	if err := config.StoreDSN(c.Driver, c.DSN); err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "stored %s DSN in the keyring under %q\n", c.Driver, config.KeyringService)
	return nil
}

// CallCmd runs one operation through the dispatcher, as the HTTP endpoint does.
type CallCmd struct {
	Operation string `arg:"" help:"Operation name; see 'deskbook operations'."`
	Payload   string `arg:"" optional:"" help:"JSON payload." default:"{}"`
	As        string `help:"User id to act as." required:""`
}

func (c *CallCmd) Run(rt *runtime) error {
	ctx := context.Background()
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.store.GetUser(ctx, c.As)
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("user %q does not exist", c.As)
	}
	if err != nil {
		return err
	}
	if !user.Active {
		return fmt.Errorf("user %q is inactive", c.As)
	}

	principal := application.Principal{UserID: user.ID, Role: user.Role}
	result, err := a.services.Dispatcher.DispatchJSON(ctx, principal, c.Operation, json.RawMessage(c.Payload))
	if err != nil {
		return describeError(err)
	}
	return rt.printJSON(result)
}

// OperationsCmd lists the operation names accepted by call and /v1/dispatch.
type OperationsCmd struct{}

func (c *OperationsCmd) Run(rt *runtime) error {
	for _, op := range application.Operations() {
		fmt.Fprintln(rt.out, op)
	}
	return nil
}

// describeError prefixes err with its kind and appends details and field errors.
func describeError(err error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", application.ErrorKind(err), err)

	var bErr *application.BookingError
	if errors.As(err, &bErr) {
		if details := bErr.DetailMap(); len(details) > 0 {
			encoded, _ := json.Marshal(details)
			fmt.Fprintf(&b, " %s", encoded)
		}
	}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		encoded, _ := json.Marshal(vErr.FieldErrors)
		fmt.Fprintf(&b, " %s", encoded)
	}
	return errors.New(b.String())
}
