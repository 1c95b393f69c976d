package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/spf13/cobra"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List trial phases and simulation modes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		heading := lipgloss.NewStyle().Bold(true)
		name := lipgloss.NewStyle().Width(22)
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, heading.Render("Phases"))
		for _, phase := range trial.Phases {
			fmt.Fprintf(out, "  %s%s: %s\n", name.Render(string(phase)), phase.Label(), phase.Description())
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, heading.Render("Modes"))
		for _, mode := range trial.Modes {
			fmt.Fprintf(out, "  %s%s: %s\n", name.Render(string(mode)), mode.Label(), mode.Description())
		}
		return nil
	},
}
