package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vincentkfu/fioverify/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// resultsModel is the Bubble Tea model for browsing run results.
type resultsModel struct {
	summary  *taxonomy.RunSummary
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newResultsModel(summary *taxonomy.RunSummary) resultsModel {
	h := help.New()
	content := renderResultsContent(summary)
	return resultsModel{
		summary: summary,
		help:    h,
		keys:    defaultKeyMap,
		content: content,
	}
}

func renderResultsContent(summary *taxonomy.RunSummary) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("Run %s: %d passed, %d failed, %d skipped",
			summary.RunID, summary.Tally.Passed,
			summary.Tally.Failed, summary.Tally.Skipped)))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(fmt.Sprintf("    subject: %s", summary.FioPath)))
	sb.WriteString("\n\n")

	for _, matrix := range []string{"verify", "fault"} {
		rows := make([][]string, 0, len(summary.Results))
		for _, r := range summary.Results {
			if r.Matrix != matrix {
				continue
			}
			coord := r.Direction
			if matrix == "fault" {
				coord = "mangle=" + r.Mangle
			}
			detail := string(r.Kind)
			if r.Detail != "" {
				if detail != "" {
					detail += ": "
				}
				detail += r.Detail
			}
			if len(detail) > 50 {
				detail = detail[:47] + "..."
			}
			rows = append(rows, []string{
				fmt.Sprintf("%04d", r.CaseID),
				coord,
				r.Checksum,
				strings.ToUpper(string(r.Status)),
				detail,
			})
		}
		if len(rows) == 0 {
			continue
		}

		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s matrix ===", matrix)))
		sb.WriteString("\n")

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tuiBorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tuiHeaderStyle
				}
				if col == 3 && row >= 0 && row < len(rows) {
					switch rows[row][3] {
					case "PASSED":
						return passedStyle
					case "FAILED":
						return failedStyle
					case "SKIPPED":
						return skippedStyle
					}
				}
				return lipgloss.NewStyle()
			}).
			Headers("ID", "WORKLOAD", "CHECKSUM", "STATUS", "DETAIL").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n\n")
	}

	if len(summary.Results) == 0 {
		sb.WriteString(statusStyle.Render("    No cases ran."))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m resultsModel) Init() tea.Cmd {
	return nil
}

func (m resultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m resultsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveResults launches the Bubble Tea TUI for browsing run
// results.
func runInteractiveResults(summary *taxonomy.RunSummary) error {
	model := newResultsModel(summary)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
