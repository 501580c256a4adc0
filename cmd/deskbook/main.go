package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config  string `help:"YAML configuration file. Defaults to $DESKBOOK_CONFIG." type:"path"`
	EnvFile string `help:"Dotenv file read under the process environment." name:"env-file" default:".env" type:"path"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP dispatch server."`
	Migrate MigrateCmd `cmd:"" help:"Apply or inspect schema migrations."`
	User    struct {
		Add  UserAddCmd  `cmd:"" help:"Register a user."`
		List UserListCmd `cmd:"" help:"List users."`
	} `cmd:"" help:"Manage users."`
	Room struct {
		Add  RoomAddCmd  `cmd:"" help:"Create a room."`
		List RoomListCmd `cmd:"" help:"List rooms."`
	} `cmd:"" help:"Manage rooms."`
	Cell struct {
		Add  CellAddCmd  `cmd:"" help:"Place a desk in a room grid."`
		List CellListCmd `cmd:"" help:"List the desks of a room."`
	} `cmd:"" help:"Manage desks."`
	Access struct {
		Grant  AccessGrantCmd  `cmd:"" help:"Grant a user a role on a room."`
		Revoke AccessRevokeCmd `cmd:"" help:"Remove a user's grant on a room."`
	} `cmd:"" help:"Manage room access."`
	Session struct {
		Issue  SessionIssueCmd  `cmd:"" help:"Issue a bearer token for a user."`
		Revoke SessionRevokeCmd `cmd:"" help:"Revoke a bearer token."`
		Purge  SessionPurgeCmd  `cmd:"" help:"Delete expired sessions."`
	} `cmd:"" help:"Manage sessions."`
	DB struct {
		SetDSN DBSetDSNCmd `cmd:"" name:"set-dsn" help:"Store a postgres or mysql DSN in the OS keyring."`
	} `cmd:"" name:"db" help:"Database credentials."`
	Call       CallCmd       `cmd:"" help:"Run one booking operation as a user."`
	Operations OperationsCmd `cmd:"" help:"List the booking operations."`
}

func main() {
	rt := &runtime{out: os.Stdout, errOut: os.Stderr}
	if err := run(os.Args[1:], rt, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, rt *runtime, exit func(int)) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("deskbook"),
		kong.Description("Desk booking conflict and lifecycle engine."),
		kong.UsageOnError(),
		kong.Writers(rt.out, rt.errOut),
		kong.Exit(exit),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	rt.globals = &cli.Globals
	return ctx.Run(rt)
}
