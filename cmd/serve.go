package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/shoptalk/internal/dashboard"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
	"github.com/ziadkadry99/shoptalk/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shoptalk server",
	Long:  `Starts the HTTP server: channel webhooks, operator API, and the dashboard websockets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hub := dashboard.NewHub()
		rt, err := buildRuntime(hub)
		if err != nil {
			return err
		}
		defer rt.Close()

		port := rt.cfg.Port
		if servePort != 0 {
			port = servePort
		}

		dash := dashboard.New(rt.engine, hub, rt.logger)
		webhook := gateway.NewWebhook(rt.engine, rt.engine, nil, rt.logger)

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: rt.cfg.AllowAllOrigins,
		}, server.Deps{
			Webhook:       webhook,
			Dashboard:     dash,
			Conversations: rt.conversations,
			Usage:         rt.usage,
			Health:        rt.health,
			Handoffs:      rt.engine,
			Logger:        rt.logger,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Idle sweeper: conversations silent past the idle timeout stop
		// counting as active.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := rt.conversations.SweepIdle(ctx, rt.cfg.IdleTimeout())
					if err != nil {
						rt.logger.Warn("idle sweep failed", "error", err)
					} else if n > 0 {
						rt.logger.Info("idle conversations swept", "count", n)
					}
				}
			}
		}()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "shoptalk server v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Data dir: %s\n", rt.cfg.DataDir)
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
