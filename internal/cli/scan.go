package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshlora/meshlora/internal/mesh"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe for reachable radio endpoints",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("meshlora Scan")
		endpoints := mesh.Scan()
		if len(endpoints) == 0 {
			fmt.Println("No radio endpoints found.")
			fmt.Println("Checked serial device nodes and the daemon TCP port (localhost:4403).")
			return
		}
		for _, ep := range endpoints {
			fmt.Printf("  %s\n", ep)
		}
	},
}
