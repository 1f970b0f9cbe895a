package cmd

import (
	"github.com/apex/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

type Settings struct {
	RawDataDir string
}

func NewRootCmd(injector *do.Injector) *cobra.Command {
	c := &cobra.Command{
		Use:           "task",
		Short:         "velo-ingest task",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			verbose, _ := c.Flags().GetBool("verbose")
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		Run: func(c *cobra.Command, args []string) {
			c.Help()
		},
	}

	c.PersistentFlags().String("base-dir", "", "directory receiving the dated raw data folders (default from RAW_DATA_DIR)")
	c.PersistentFlags().BoolP("verbose", "v", false, "enable verbose log output")

	c.AddCommand(newFetchDataCmd(injector))

	return c
}
