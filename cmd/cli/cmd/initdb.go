package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"velo-ingest/database"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "create the fetch ledger schema",
		RunE: func(c *cobra.Command, args []string) error {
			return newInitDBCommand().Execute(c, args)
		},
	}
}

type initDBCommand struct{}

func newInitDBCommand() *initDBCommand {
	return &initDBCommand{}
}

func (c *initDBCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	config, ok := ctx.Value(database.CTXKeyDBConfig).(database.Config)
	if !ok {
		return errors.New("database config is nil")
	}

	db := database.NewRawDB(config)
	if err := db.Connect(); err != nil {
		return err
	}
	defer db.Shutdown()

	if err := db.Init(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "schema %s initialized successfully.\n", database.SchemaName)

	return nil
}
