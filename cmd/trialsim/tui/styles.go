package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	live     lipgloss.Style
	idle     lipgloss.Style
	failure  lipgloss.Style
	help     lipgloss.Style

	user     lipgloss.Style
	opponent lipgloss.Style
	stamp    lipgloss.Style

	panel      lipgloss.Style
	alert      lipgloss.Style
	coach      lipgloss.Style
	label      lipgloss.Style
	prompter   lipgloss.Style
	effective  lipgloss.Style
	fallacious lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B")),
		subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		live:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E06C75")),
		idle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		user:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		opponent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C678DD")),
		stamp:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		panel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")),
		alert: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#BE5046")).
			Padding(0, 1),
		coach:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#98C379")).Padding(0, 1),
		label:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#98C379")),
		prompter:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#E5C07B")),
		effective:  lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")),
		fallacious: lipgloss.NewStyle().Foreground(lipgloss.Color("#D19A66")),
	}
}

func (s styles) header(title string, setup trial.Setup) string {
	if title == "" {
		title = "Trial Simulation"
	}
	return s.title.Render(title) + "\n" + s.subtitle.Render(fmt.Sprintf(
		"%s · %s mode · opposing counsel %s",
		setup.Phase.Label(), setup.Mode.Label(), setup.Opponent(),
	))
}

func (s styles) message(message trial.Message, width int) string {
	speaker := s.user.Render("You")
	if message.Sender == trial.SenderOpponent {
		speaker = s.opponent.Render("Counsel")
	}

	head := speaker
	if stamp := formatClock(message.Timestamp); stamp != "" {
		head += " " + s.stamp.Render(stamp)
	}
	body := indent.String(wordwrap.String(message.Text, max(width-2, 10)), 2)
	return head + "\n" + body
}

func (s styles) objection(alert trial.ObjectionAlert, width int) string {
	text := "OBJECTION! " + alert.Grounds
	if alert.Explanation != "" {
		text += ": " + alert.Explanation
	}
	return s.alert.Render(wordwrap.String(text, max(width-2, 10)))
}

func (s styles) coaching(analysis trial.CoachingAnalysis, width int) string {
	wrap := max(width-4, 10)

	var b strings.Builder
	section := func(label, text string, style lipgloss.Style) {
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.label.Render(label))
		b.WriteString("\n")
		b.WriteString(style.Render(wordwrap.String(text, wrap)))
	}

	plain := lipgloss.NewStyle()
	section("Say next", analysis.TeleprompterScript, s.prompter)
	section("Critique", analysis.Critique, plain)
	section("Suggestion", analysis.Suggestion, plain)
	section("Sample response", analysis.SampleResponse, plain)

	effectiveness := fmt.Sprintf("Rhetorical effectiveness %.0f/100", analysis.RhetoricalEffectiveness)
	if analysis.RhetoricalFeedback != "" {
		effectiveness += ": " + analysis.RhetoricalFeedback
	}
	section("Delivery", effectiveness, s.effective)

	if len(analysis.FallaciesIdentified) > 0 {
		section("Fallacies", strings.Join(analysis.FallaciesIdentified, ", "), s.fallacious)
	}

	return s.coach.Width(width).Render(b.String())
}
