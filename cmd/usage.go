package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/usage"
)

var (
	usageTenant string
	usageHours  int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM usage and cost per tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		since := time.Now().Add(-time.Duration(usageHours) * time.Hour)
		summaries, err := usage.NewStore(database).ByTenant(cmd.Context(), usageTenant, since)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintf(os.Stderr, "No usage recorded in the last %dh.\n", usageHours)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TENANT\tCALLS\tIN TOKENS\tOUT TOKENS\tCOST (USD)")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\n",
				s.TenantID, s.Calls, s.InputTokens, s.OutputTokens, s.CostUSD)
		}
		return w.Flush()
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageTenant, "tenant", "", "limit to one tenant")
	usageCmd.Flags().IntVar(&usageHours, "hours", 24, "window size in hours")
	rootCmd.AddCommand(usageCmd)
}
