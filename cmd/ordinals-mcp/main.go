package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.ordinalsmcp/internal/config"
	"go.ordinalsmcp/internal/discovery"
	"go.ordinalsmcp/internal/logging"
	"go.ordinalsmcp/internal/ordiscan"
	"go.ordinalsmcp/internal/server"
	"go.ordinalsmcp/internal/tools"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

type options struct {
	transport string
	advertise bool
	instance  string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ordinals-mcp:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "ordinals-mcp",
		Short: "MCP server for Bitcoin Runes and BRC-20 address lookups",
		Long: `ordinals-mcp exposes Ordiscan address data as MCP tools:
get_rune_balance, get_brc20_balance, get_runes_activity and get_brc20_activity.

The API key is read from ORDISCAN_API_KEY. By default the server speaks MCP
over stdin/stdout; --transport http serves it on --port (or PORT, default 3000).`,
		Version:       server.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.Flags(), opts)
		},
	}

	config.BindFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport to serve MCP on (stdio or http)")
	cmd.Flags().BoolVar(&opts.advertise, "advertise", false, "Publish the HTTP transport over mDNS")
	cmd.Flags().StringVar(&opts.instance, "instance", "", "Instance name advertised over mDNS (defaults to hostname)")
	cmd.AddCommand(newDiscoverCommand())
	return cmd
}

func run(ctx context.Context, flags *pflag.FlagSet, opts options) error {
	if opts.transport != transportStdio && opts.transport != transportHTTP {
		return fmt.Errorf("transport %q is not supported", opts.transport)
	}

	logger := logging.FromEnv("[ordinals-mcp]", nil)

	environ, err := config.MergeDotEnv(".env", config.Environ())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	cfg, err := config.Resolve(flags, environ)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	// In stdio mode stdout carries the protocol, so the summary stays silent.
	if opts.transport != transportStdio {
		config.Report(logger, cfg)
	}

	client := ordiscan.New(cfg.BaseURL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout})
	registry, err := tools.NewOrdinalsRegistry(client, logger)
	if err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	srv := server.New(registry, logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.transport == transportStdio {
		return srv.ServeStdio(ctx)
	}

	if opts.advertise {
		announcer, err := announce(logger, cfg.Port, opts.instance)
		if err != nil {
			return err
		}
		defer announcer.Stop()
	}
	return srv.ServeHTTP(ctx, fmt.Sprintf(":%d", cfg.Port))
}

func announce(logger *log.Logger, port int, instance string) (*discovery.Announcer, error) {
	announcer, err := discovery.NewAnnouncer(discovery.AnnounceOptions{
		Instance: instance,
		Port:     port,
		Text: map[string]string{
			"role":      "tool",
			"transport": transportHTTP,
			"path":      server.MCPPath,
			"version":   server.Version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("announce over mdns: %w", err)
	}
	logger.Info("advertising over mdns", "port", port, "instance", instance)
	return announcer, nil
}
