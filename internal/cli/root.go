// Package cli defines the meshlora command surface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/meshlora/meshlora/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"                      _     _\n" +
		"  _ __ ___   ___  ___| |__ | | ___  _ __ __ _\n" +
		" | '_ ` _ \\ / _ \\/ __| '_ \\| |/ _ \\| '__/ _` |\n" +
		" | | | | | |  __/\\__ \\ | | | | (_) | | | (_| |\n" +
		" |_| |_| |_|\\___||___/_| |_|_|\\___/|_|  \\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "meshlora",
	Short: "meshlora - LoRa mesh to LLM bridge",
	Long:  color.CyanString(logo) + "\nAn off-grid assistant bridging a LoRa mesh radio network to a language model.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(scanCmd)
}
