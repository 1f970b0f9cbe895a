package cmd

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"velo-ingest/internal/api/opendata"
	"velo-ingest/internal/rawdata"
	"velo-ingest/internal/source"
	usecase "velo-ingest/internal/usecase/task"
)

func newFetchDataCmd(injector *do.Injector) *cobra.Command {
	c := &cobra.Command{
		Use:   "fetch-data",
		Short: "fetching raw data from the open data sources",
		Run: func(c *cobra.Command, args []string) {
			c.Help()
		},
	}

	c.AddCommand(newFetchDataBicyclesCmd(injector))
	c.AddCommand(newFetchDataCommunesCmd(injector))
	c.AddCommand(newFetchDataAllCmd(injector))
	c.AddCommand(newFetchDataSourceCmd(injector))

	return c
}

func newFetchDataBicyclesCmd(injector *do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "bicycles",
		Short: "fetching real-time bicycle availability for every city",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return newFetchDataCommand(c, injector).Execute(func(ctx context.Context, uc *usecase.FetchDataTaskUseCase) (*usecase.FetchDataResponse, error) {
				return uc.FetchBicycles(ctx)
			})
		},
	}
}

func newFetchDataCommunesCmd(injector *do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "communes",
		Short: "fetching the French commune reference data",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return newFetchDataCommand(c, injector).Execute(func(ctx context.Context, uc *usecase.FetchDataTaskUseCase) (*usecase.FetchDataResponse, error) {
				return uc.FetchCommunes(ctx)
			})
		},
	}
}

func newFetchDataAllCmd(injector *do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "fetching bicycle data then every other source",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return newFetchDataCommand(c, injector).Execute(func(ctx context.Context, uc *usecase.FetchDataTaskUseCase) (*usecase.FetchDataResponse, error) {
				return uc.FetchAll(ctx)
			})
		},
	}
}

func newFetchDataSourceCmd(injector *do.Injector) *cobra.Command {
	c := &cobra.Command{
		Use:   "source NAME",
		Short: "fetching a single source by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			skip, err := c.Flags().GetBool("skip-status-check")
			if err != nil {
				return err
			}

			req := &usecase.FetchSourceRequest{Name: args[0], SkipStatusCheck: skip}

			return newFetchDataCommand(c, injector).Execute(func(ctx context.Context, uc *usecase.FetchDataTaskUseCase) (*usecase.FetchDataResponse, error) {
				return uc.FetchSource(ctx, req)
			})
		},
	}

	c.Flags().Bool("skip-status-check", false, "save the response body even when the status code is not 200")

	return c
}

type fetchDataCommand struct {
	cmd      *cobra.Command
	injector *do.Injector
}

func newFetchDataCommand(cmd *cobra.Command, injector *do.Injector) *fetchDataCommand {
	return &fetchDataCommand{cmd: cmd, injector: injector}
}

func (c *fetchDataCommand) Execute(run func(context.Context, *usecase.FetchDataTaskUseCase) (*usecase.FetchDataResponse, error)) error {
	baseDir, err := c.getOptionStringFlag("base-dir")
	if err != nil {
		return err
	}

	settings := do.MustInvoke[Settings](c.injector)
	store := rawdata.NewStore(
		lo.FromPtrOr(baseDir, settings.RawDataDir),
		do.MustInvoke[rawdata.Clock](c.injector),
	)

	uc := usecase.NewFetchDataTaskUseCase(
		do.MustInvoke[*opendata.Client](c.injector),
		store,
		do.MustInvoke[*source.Catalog](c.injector),
		do.MustInvoke[usecase.Recorder](c.injector),
		c.cmd.OutOrStdout(),
		do.MustInvoke[log.Interface](c.injector),
	)

	ctx := c.cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := run(ctx, uc); err != nil {
		return fmt.Errorf("fetch aborted: %w", err)
	}

	return nil
}

func (c *fetchDataCommand) getOptionStringFlag(flag string) (*string, error) {
	if !c.cmd.Flags().Changed(flag) {
		return nil, nil
	}

	s, err := c.cmd.Flags().GetString(flag)
	if err != nil {
		return nil, err
	} else if s == "" {
		return nil, nil
	}

	return lo.ToPtr(s), nil
}
