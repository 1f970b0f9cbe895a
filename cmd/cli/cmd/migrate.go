package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"velo-ingest/database"
)

const (
	migrationDir = "migrations"
)

func newMigrateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "database migration commands",
		Run: func(c *cobra.Command, args []string) {
			c.Help()
		},
	}

	c.AddCommand(newMigrateCmdCreate())
	c.AddCommand(newMigrateCmdList())
	c.AddCommand(newMigrateCmdUp())
	c.AddCommand(newMigrateCmdDown())
	c.AddCommand(newMigrateCmdGoto())
	c.AddCommand(newMigrateCmdVersion())

	return c
}

func newMigrateCmdCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "create a new migration file",
		RunE: func(c *cobra.Command, args []string) error {
			return newMigrateCommand(migrationDir).Create(c, args)
		},
	}
}

func newMigrateCmdList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list migration versions",
		RunE: func(c *cobra.Command, args []string) error {
			return newMigrateCommand(migrationDir).List(c)
		},
	}
}

func newMigrateCmdUp() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "migrate up to latest version",
		RunE: func(c *cobra.Command, _ []string) error {
			return newMigrateCommand(migrationDir).Up(c)
		},
	}
}

func newMigrateCmdDown() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "migrate down all",
		RunE: func(c *cobra.Command, _ []string) error {
			return newMigrateCommand(migrationDir).Down(c)
		},
	}
}

func newMigrateCmdGoto() *cobra.Command {
	return &cobra.Command{
		Use:   "goto VERSION",
		Short: "migrate to a specific version",
		RunE: func(c *cobra.Command, args []string) error {
			return newMigrateCommand(migrationDir).Goto(c, args)
		},
	}
}

func newMigrateCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show current migration version",
		RunE: func(c *cobra.Command, _ []string) error {
			return newMigrateCommand(migrationDir).Version(c)
		},
	}
}

var migrationNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// migration is the subset of *migrate.Migrate used by the subcommands.
type migration interface {
	Up() error
	Down() error
	Migrate(version uint) error
	Version() (uint, bool, error)
	Close() (error, error)
}

type migrateCommand struct {
	migrationDir string
	open         func(ctx context.Context) (migration, error)
}

func newMigrateCommand(migrationDir string) *migrateCommand {
	m := &migrateCommand{migrationDir: migrationDir}
	m.open = func(ctx context.Context) (migration, error) {
		mig, err := m.makeMigrationInstance(ctx)
		if err != nil {
			return nil, err
		}

		return mig, nil
	}

	return m
}

func (m *migrateCommand) Create(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("migration name is required")
	}

	name := args[0]
	if !migrationNamePattern.MatchString(name) {
		return fmt.Errorf("invalid migration name %q: use lowercase letters, digits and underscores", name)
	}

	if err := os.MkdirAll(m.migrationDir, 0o755); err != nil {
		return fmt.Errorf("failed to create migration directory: %w", err)
	}

	version, err := m.nextVersion()
	if err != nil {
		return err
	}

	for _, direction := range []string{"up", "down"} {
		path := filepath.Join(m.migrationDir, fmt.Sprintf("%06d_%s.%s.sql", version, name, direction))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create migration file: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	return nil
}

func (m *migrateCommand) nextVersion() (int, error) {
	entries, err := os.ReadDir(m.migrationDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	latest := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		prefix, _, found := strings.Cut(entry.Name(), "_")
		if !found {
			continue
		}

		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if version > latest {
			latest = version
		}
	}

	return latest + 1, nil
}

func (m *migrateCommand) List(cmd *cobra.Command) error {
	entries, err := os.ReadDir(m.migrationDir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		baseName := strings.TrimSuffix(name, ".up.sql")
		parts := strings.Split(baseName, "_")
		if len(parts) < 2 {
			continue
		}

		version := parts[0]
		desc := strings.Join(parts[1:], " ")

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", version, desc)
	}

	return nil
}

func (m *migrateCommand) Up(cmd *cobra.Command) error {
	ctx := cmd.Context()
	mig, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrated up to the latest version.")

	return nil
}

func (m *migrateCommand) Down(cmd *cobra.Command) error {
	ctx := cmd.Context()
	mig, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mig.Close()

	if !m.askConfirmation(cmd, "Are you sure you want to apply all down migrations?") {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	return mig.Down()
}

func (m *migrateCommand) Goto(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("target version is required")
	}

	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	ctx := cmd.Context()
	mig, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mig.Close()

	cur, _, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	if uint(version) < cur {
		if !m.askConfirmation(cmd, fmt.Sprintf("Are you sure you want to migrate down from %d to %d?", cur, version)) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	return mig.Migrate(uint(version))
}

func (m *migrateCommand) Version(cmd *cobra.Command) error {
	ctx := cmd.Context()
	mig, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mig.Close()

	version, dirty, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "No migration applied yet.")
		return nil
	} else if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d", version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())

	return nil
}

func (m *migrateCommand) makeMigrationInstance(ctx context.Context) (*migrate.Migrate, error) {
	config := ctx.Value(database.CTXKeyDBConfig)
	if config == nil {
		return nil, errors.New("database config is nil")
	}

	dbConfig, ok := config.(database.Config)
	if !ok {
		return nil, errors.New("database config has an unexpected type")
	}

	db := database.NewRawDB(dbConfig)
	if err := db.Connect(); err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db.DB(), &postgres.Config{
		SchemaName: database.SchemaName,
	})
	if err != nil {
		db.Shutdown()
		return nil, err
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+m.migrationDir, "postgres", driver)
	if err != nil {
		driver.Close()
		return nil, err
	}

	return mig, nil
}

func (m *migrateCommand) askConfirmation(cmd *cobra.Command, q string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/n): ", q)

	s := bufio.NewScanner(cmd.InOrStdin())
	s.Scan()
	res := strings.TrimSpace(strings.ToLower(s.Text()))

	return res == "y" || res == "yes"
}
