package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"go.ordinalsmcp/internal/discovery"
)

func newDiscoverCommand() *cobra.Command {
	var (
		timeout time.Duration
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List MCP servers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if timeout <= 0 {
				return fmt.Errorf("timeout must be positive, got %s", timeout)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			instances, err := discovery.Browse(ctx, discovery.BrowseOptions{RolesAll: all})
			if err != nil {
				return err
			}
			writeInstances(cmd.OutOrStdout(), instances)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to listen for advertisements")
	cmd.Flags().BoolVar(&all, "all", false, "Include servers advertising a role other than tool")
	return cmd
}

func writeInstances(w io.Writer, instances []discovery.Instance) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "no servers found")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INSTANCE", "ADDRESS", "ROLE", "PATH")
	for _, inst := range instances {
		t.Row(inst.Name, inst.Address, inst.Role, inst.Text["path"])
	}
	fmt.Fprintln(w, t.String())
}
