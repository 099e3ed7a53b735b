package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage tenant configuration",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured tenants",
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

		ids, err := tenant.NewStore(database).List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "No tenants configured. Run `shoptalk init` then `shoptalk tenants load <file>`.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var tenantsLoadCmd = &cobra.Command{
	Use:   "load <seed.yml>",
	Short: "Load a tenant seed file into the tenant store",
	Long: `Reads a tenant seed YAML file and upserts it into the tenant store.
Loading an existing tenant bumps its snapshot version; running
conversations keep the snapshot they started their turn with.`,
	Args: cobra.ExactArgs(1),
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

		snap, err := tenant.LoadSeed(args[0])
		if err != nil {
			return err
		}
		stored, err := tenant.NewStore(database).Put(cmd.Context(), snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Tenant %q stored at version %d\n", stored.TenantID, stored.Version)
		return nil
	},
}

func init() {
	tenantsCmd.AddCommand(tenantsListCmd)
	tenantsCmd.AddCommand(tenantsLoadCmd)
	rootCmd.AddCommand(tenantsCmd)
}
