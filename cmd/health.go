package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/llm"
)

var healthAddr string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show provider health of a running shoptalk server",
	Long: `Queries the operator API of a running server for the rolling-window
health of every provider/model pair. Health lives in server memory, so
this command needs the server to be up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := healthAddr
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr = fmt.Sprintf("http://localhost:%d", cfg.Port)
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(addr + "/ops/providers")
		if err != nil {
			return fmt.Errorf("querying %s: %w (is the server running?)", addr, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		var body struct {
			Providers []llm.HealthStatus `json:"providers"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		if len(body.Providers) == 0 {
			fmt.Fprintln(os.Stderr, "No provider attempts recorded yet; all providers are considered healthy.")
			return nil
		}
		for _, st := range body.Providers {
			state := "healthy"
			if !st.Healthy {
				state = "UNHEALTHY"
			}
			fmt.Printf("%s: %s (%d ok, %d failed in window)\n",
				st.Ref.Key(), state, st.Successes, st.Failures)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAddr, "addr", "", "server base URL (default http://localhost:<config port>)")
	rootCmd.AddCommand(healthCmd)
}
