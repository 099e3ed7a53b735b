package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/config"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

var initTenantFile string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize shoptalk configuration with an interactive wizard",
	Long: `Writes a default shoptalk.yml (if none exists) and runs an interactive
wizard that produces a tenant seed file. Load the seed with
` + "`shoptalk tenants load <file>`" + `.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			if err := config.DefaultConfig().Save(cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote default config to %s\n", cfgFile)
		} else {
			fmt.Fprintf(os.Stderr, "Config %s already exists, leaving it untouched\n", cfgFile)
		}

		snap, err := tenant.RunWizard(initTenantFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote tenant seed for %q to %s\n", snap.TenantID, initTenantFile)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initTenantFile, "tenant-file", "tenant.yml", "where to write the tenant seed")
	rootCmd.AddCommand(initCmd)
}
