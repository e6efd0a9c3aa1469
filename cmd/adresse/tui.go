package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"adresse/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive extraction prompt",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	subtitle := fmt.Sprintf("%s · %d communes · %s", a.Model.Name(), len(a.Catalog.Communes), a.Config.Store.Type)
	p := tea.NewProgram(tui.New(cmd.Context(), a.Service, subtitle), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}
