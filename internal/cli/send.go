package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meshlora/meshlora/internal/config"
	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/store"
)

var (
	sendTo      string
	sendChannel int
)

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Queue a message for the running bridge to transmit",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}
		if err := mesh.ValidateSend(text, sendChannel); err != nil {
			fmt.Printf("Invalid message: %v\n", err)
			os.Exit(1)
		}

		st, err := store.Open(cfg.Paths.Database)
		if err != nil {
			fmt.Printf("Failed to open store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		item, err := st.EnqueueOutbox(text, sendTo, sendChannel, "")
		if err != nil {
			fmt.Printf("Failed to queue: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Queued #%d to %s on channel %d. A running bridge will transmit it.\n",
			item.ID, item.Dest, item.Channel)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", mesh.Broadcast, "destination node id (default: broadcast)")
	sendCmd.Flags().IntVar(&sendChannel, "channel", 0, "mesh channel (0-7)")
}
