package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshlora/meshlora/internal/config"
	"github.com/meshlora/meshlora/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("meshlora Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("meshlora Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, err := os.Stat(configPath); err == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Provider: %s (%s)\n", cfg.Model.Provider, cfg.Model.Name)
		fmt.Printf("Transport: %s %s\n", cfg.Transport.Kind, cfg.Transport.Address)

		if _, err := os.Stat(cfg.Paths.Database); err != nil {
			fmt.Println("Database: ✗ Not found (run 'meshlora bridge' first)")
			return
		}
		st, err := store.Open(cfg.Paths.Database)
		if err != nil {
			fmt.Printf("Database: ✗ %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		stats, err := st.Stats()
		if err != nil {
			fmt.Printf("Database: ✗ %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Database: ✓ %s (schema v%d)\n", cfg.Paths.Database, stats.SchemaVersion)
		fmt.Printf("  nodes: %d  messages: %d  events: %d  filtered: %d\n",
			stats.Nodes, stats.Messages, stats.RawEvents, stats.FilteredEvents)
		fmt.Printf("  outbox: %d pending, %d in flight, %d sent, %d failed\n",
			stats.OutboxPending, stats.OutboxInFlight, stats.OutboxSent, stats.OutboxFailed)

		if token, err := st.LivenessToken(); err == nil && token != "" {
			if at, err := time.Parse(time.RFC3339Nano, token); err == nil {
				fmt.Printf("  last activity: %s ago\n", time.Since(at).Round(time.Second))
			}
		}
	},
}
