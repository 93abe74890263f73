package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshlora/meshlora/internal/bridge"
	"github.com/meshlora/meshlora/internal/config"
	"github.com/meshlora/meshlora/internal/filter"
	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/provider"
	"github.com/meshlora/meshlora/internal/store"
	"github.com/meshlora/meshlora/internal/tools"
)

var (
	bridgeTransport string
	bridgeAddress   string
	bridgeNoAuto    bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the mesh bridge (ingestion, responses, outbox)",
	Run:   runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeTransport, "transport", "", "transport kind (tcp, fake); overrides config")
	bridgeCmd.Flags().StringVar(&bridgeAddress, "address", "", "daemon address; overrides config")
	bridgeCmd.Flags().BoolVar(&bridgeNoAuto, "no-auto", false, "ingest and persist only, never reply")
}

func runBridge(cmd *cobra.Command, args []string) {
	printHeader("meshlora Bridge")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if bridgeTransport != "" {
		cfg.Transport.Kind = bridgeTransport
	}
	if bridgeAddress != "" {
		cfg.Transport.Address = bridgeAddress
	}
	if bridgeNoAuto {
		cfg.Bridge.AutoRespond = false
	}

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	llm, err := provider.Resolve(cfg)
	if err != nil {
		fmt.Printf("Provider error: %v\n", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry()
	if cfg.Tools.Weather.Enabled {
		registry.Register(tools.NewWeatherTool(cfg.Tools.Weather.Latitude, cfg.Tools.Weather.Longitude))
	}
	if cfg.Tools.Search.Enabled {
		registry.Register(tools.NewSearchTool())
	}

	transport, err := mesh.New(cfg.Transport.Kind, cfg.Transport.Address)
	if err != nil {
		fmt.Printf("Transport error: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	composer := bridge.NewComposer(st, llm, registry, bridge.ComposerOptions{
		Model:         cfg.Model.Name,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
		MaxIterations: cfg.Model.MaxToolIterations,
		ReplyBudget:   cfg.Model.ReplyBudgetBytes,
		SystemPrompt:  cfg.Model.SystemPrompt,
	})
	gate := filter.New(cfg.Filter.Strict)
	limiter := filter.NewRateLimiter(cfg.Filter.MaxMessages, time.Duration(cfg.Filter.WindowSeconds)*time.Second)

	loop := bridge.NewLoop(st, transport, gate, limiter, composer, bridge.LoopOptions{
		Workers:           cfg.Bridge.Workers,
		ReconnectAttempts: cfg.Bridge.ReconnectAttempts,
		AutoRespond:       cfg.Bridge.AutoRespond,
	})
	poller := bridge.NewOutboxPoller(st, transport, bridge.OutboxOptions{
		Interval:    cfg.Bridge.OutboxInterval,
		MaxAttempts: cfg.Bridge.OutboxMaxAttempts,
		StaleAfter:  cfg.Bridge.StaleClaimAfter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- loop.Run(ctx) }()
	go func() { errCh <- poller.Run(ctx) }()

	fmt.Printf("Connected via %s. Type 'help' for commands.\n", transport.Name())
	go console(ctx, stop, st, loop)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			slog.Error("Bridge stopped", "error", err)
			stop()
			os.Exit(1)
		}
	}
	fmt.Println("\nShutting down...")
}

// console reads operator commands from stdin until EOF or quit.
func console(ctx context.Context, stop func(), st *store.Store, loop *bridge.Loop) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "help":
			fmt.Println("commands:")
			fmt.Println("  send [@node|#channel] <text>  queue a message (default: broadcast ch 0)")
			fmt.Println("  nodes                         list known nodes")
			fmt.Println("  status                        bridge state")
			fmt.Println("  stats                         database counters")
			fmt.Println("  auto on|off                   toggle auto-respond")
			fmt.Println("  fact <text>                   save an operator note for the model")
			fmt.Println("  quit                          stop the bridge")
		case "send":
			consoleSend(st, rest)
		case "nodes":
			consoleNodes(st)
		case "status":
			fmt.Printf("state: %s  auto-respond: %v\n", loop.State(), loop.AutoRespond())
		case "stats":
			consoleStats(st)
		case "auto":
			switch rest {
			case "on":
				loop.SetAutoRespond(true)
			case "off":
				loop.SetAutoRespond(false)
			default:
				fmt.Println("usage: auto on|off")
			}
		case "fact":
			if rest == "" {
				fmt.Println("usage: fact <text>")
				continue
			}
			if err := st.SaveGlobalFact(rest); err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Println("saved")
			}
		case "quit", "exit":
			stop()
			return
		default:
			fmt.Printf("unknown command %q (try 'help')\n", cmd)
		}
	}
	// stdin closed (e.g. daemonized); the bridge keeps running.
}

// consoleSend parses "send [@node|#channel] <text>" and enqueues it.
func consoleSend(st *store.Store, rest string) {
	dest := mesh.Broadcast
	channel := 0
	for {
		word, tail, _ := strings.Cut(rest, " ")
		if strings.HasPrefix(word, "@") && len(word) > 1 {
			dest = word[1:]
			rest = strings.TrimSpace(tail)
			continue
		}
		if strings.HasPrefix(word, "#") && len(word) > 1 {
			if ch, err := strconv.Atoi(word[1:]); err == nil {
				channel = ch
				rest = strings.TrimSpace(tail)
				continue
			}
		}
		break
	}
	if rest == "" {
		fmt.Println("usage: send [@node|#channel] <text>")
		return
	}
	if err := mesh.ValidateSend(rest, channel); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	item, err := st.EnqueueOutbox(rest, dest, channel, "")
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("queued #%d to %s (channel %d)\n", item.ID, dest, channel)
}

func consoleNodes(st *store.Store) {
	nodes, err := st.ListNodes()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(nodes) == 0 {
		fmt.Println("no nodes heard yet")
		return
	}
	for _, n := range nodes {
		name := n.LongName
		if name == "" {
			name = n.ID
		}
		fmt.Printf("  %-24s last heard %s ago, snr %.1f, heard x%d\n",
			name, time.Since(n.LastHeard).Round(time.Second), n.SNR, n.TimesHeard)
	}
}

func consoleStats(st *store.Store) {
	stats, err := st.Stats()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("schema v%d\n", stats.SchemaVersion)
	fmt.Printf("events %d  messages %d  nodes %d  filtered %d\n",
		stats.RawEvents, stats.Messages, stats.Nodes, stats.FilteredEvents)
	fmt.Printf("outbox: %d pending, %d in flight, %d sent, %d failed\n",
		stats.OutboxPending, stats.OutboxInFlight, stats.OutboxSent, stats.OutboxFailed)
}
