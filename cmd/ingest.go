package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/kb"
)

var ingestTenant string

var ingestCmd = &cobra.Command{
	Use:   "ingest <glob>",
	Short: "Ingest markdown documents into a tenant's knowledge base",
	Long: `Expands the glob (supports **), chunks every matching markdown file,
embeds the chunks, and stores them in the tenant's knowledge base for
grounding FAQ answers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		store, err := openKnowledgeBase(cfg)
		if err != nil {
			return fmt.Errorf("opening knowledge base: %w", err)
		}

		var bar *progressbar.ProgressBar
		progress := func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Ingesting docs"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
		}

		ingester := kb.NewIngester(store, logger)
		chunks, err := ingester.Ingest(cmd.Context(), ingestTenant, args[0], progress)
		if err != nil {
			return err
		}
		if err := store.Persist(); err != nil {
			return fmt.Errorf("persisting knowledge base: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Ingested %d chunks for tenant %s (%d total in collection)\n",
			chunks, ingestTenant, store.Count(ingestTenant))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTenant, "tenant", "", "tenant id to ingest into")
	ingestCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(ingestCmd)
}
