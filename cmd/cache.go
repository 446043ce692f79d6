package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/appsight/insights-cli/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the stage artifact cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached stage artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stage, _ := cmd.Flags().GetString("stage")
		artifacts, err := st.ListArtifacts(ctx, stage)
		if err != nil {
			return eris.Wrap(err, "cache list")
		}

		if len(artifacts) == 0 {
			fmt.Fprintln(os.Stderr, "Cache is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tFINGERPRINT\tBYTES\tCREATED")
		for _, a := range artifacts {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				a.StageID, a.Fingerprint, len(a.Payload), a.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stage, _ := cmd.Flags().GetString("stage")
		if stage != "" && !validStage(stage) {
			return eris.Errorf("unknown stage %q", stage)
		}

		n, err := st.DeleteArtifacts(ctx, stage)
		if err != nil {
			return eris.Wrap(err, "cache clear")
		}
		fmt.Printf("Deleted %d artifacts.\n", n)
		return nil
	},
}

func validStage(name string) bool {
	for _, s := range config.AllStages {
		if s == name {
			return true
		}
	}
	return false
}

func init() {
	cacheListCmd.Flags().String("stage", "", "filter by stage")
	cacheClearCmd.Flags().String("stage", "", "clear one stage only")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
