package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/engine"
	mcpserver "github.com/ziadkadry99/shoptalk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP operator server on stdio",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing conversation inspection, provider health, usage, and sandbox tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(engine.NopSink{})
		if err != nil {
			return err
		}
		defer rt.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "shoptalk MCP server started on stdio (data=%s)\n", rt.cfg.DataDir)

		srv := mcpserver.NewServer(rt.conversations, rt.health, rt.usage, rt.engine)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
