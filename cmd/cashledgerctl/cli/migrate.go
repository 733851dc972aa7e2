package cli

import (
	"fmt"
	"io"

	analyticsdb "github.com/odyssey-erp/cashledger/internal/analytics/db"
)

// MigrateOptions configures one migrate invocation.
type MigrateOptions struct {
	DSN    string
	Action string
	Steps  int
	Stdout io.Writer
	Stderr io.Writer
}

// Migrator applies schema changes. analyticsdb provides the default.
type Migrator struct {
	Up      func(dsn string) error
	Down    func(dsn string, steps int) error
	Version func(dsn string) (uint, bool, error)
}

// DefaultMigrator runs the embedded migrations through golang-migrate.
func DefaultMigrator() Migrator {
	return Migrator{Up: analyticsdb.MigrateUp, Down: analyticsdb.MigrateDown, Version: analyticsdb.MigrationVersion}
}

// Run executes the action and returns the process exit code.
func (m Migrator) Run(opts MigrateOptions) int {
	var err error
	switch opts.Action {
	case "up":
		if err = m.Up(opts.DSN); err == nil {
			fmt.Fprintln(opts.Stdout, "migrations applied")
		}
	case "down":
		steps := opts.Steps
		if steps == 0 {
			steps = 1
		}
		if err = m.Down(opts.DSN, steps); err == nil {
			fmt.Fprintf(opts.Stdout, "rolled back %d migration(s)\n", steps)
		}
	case "version":
		var version uint
		var dirty bool
		if version, dirty, err = m.Version(opts.DSN); err == nil {
			fmt.Fprintf(opts.Stdout, "version=%d dirty=%t\n", version, dirty)
		}
	default:
		fmt.Fprintf(opts.Stderr, "unknown migrate action %q (want up, down or version)\n", opts.Action)
		return 2
	}
	if err != nil {
		fmt.Fprintf(opts.Stderr, "migrate %s: %v\n", opts.Action, err)
		return 1
	}
	return 0
}
