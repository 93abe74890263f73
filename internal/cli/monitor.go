package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshlora/meshlora/internal/config"
	"github.com/meshlora/meshlora/internal/monitor"
	"github.com/meshlora/meshlora/internal/store"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch mesh activity from the shared database",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("meshlora Monitor")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}
		st, err := store.Open(cfg.Paths.Database)
		if err != nil {
			fmt.Printf("Failed to open store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := monitor.New(st, os.Stdout, cfg.Monitor.PollInterval)
		if err := m.Run(ctx); err != nil {
			fmt.Printf("Monitor error: %v\n", err)
			os.Exit(1)
		}
	},
}
