package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/monitor"
)

var (
	monitorServer   string
	monitorInterval time.Duration
)

func init() {
	monitorCmd.Flags().StringVar(&monitorServer, "server", "", "specragd base URL (default: from server.host and server.port)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 2*time.Second, "refresh interval")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show a live dashboard of a running specragd",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if monitorInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	server := monitorServer
	if server == "" {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		server = "http://" + e.cfg.ServerAddr()
		e.close()
	}

	p := tea.NewProgram(monitor.NewModel(server, monitorInterval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}
