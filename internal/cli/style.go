package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	roleStyles   = map[string]lipgloss.Style{
		"student":   lipgloss.NewStyle().Bold(true),
		"partner":   lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		"mentor":    lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"evaluator": lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

func heading(s string) string {
	return headingStyle.Render(s)
}

func speaker(role, name string) string {
	if st, ok := roleStyles[role]; ok {
		return st.Render(name + ":")
	}
	return name + ":"
}

func renderMarkdown(input string, width int) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(width),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(input)
}
