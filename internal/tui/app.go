// Package tui is the interactive crash-history browser: a list of
// analyzed crashes beside a scrollable detail pane.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bsod-cli/internal/engine"
	"bsod-cli/internal/storage"
	"bsod-cli/internal/textutil"
)

type focusPanel int

const (
	focusList focusPanel = iota
	focusDetail
)

type crashItem struct {
	storage.CrashRecord
}

func (i crashItem) Title() string       { return i.BugcheckName }
func (i crashItem) Description() string { return i.Driver }
func (i crashItem) FilterValue() string { return i.BugcheckName + " " + i.Driver }

type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(crashItem)
	if !ok {
		return
	}

	marker := lipgloss.NewStyle().Foreground(confidenceColor(i.Confidence)).Render("●")

	label := i.BugcheckName
	if label == "" {
		label = fmt.Sprintf("0x%X", i.BugcheckCode)
	}
	if i.Driver != "" {
		label += " · " + i.Driver
	}
	label = textutil.TruncateWithEllipsis(label, max(m.Width()-6, 10))

	line := fmt.Sprintf(" %s %s", marker, valueStyle.Render(label))
	if index == m.Index() {
		line = lipgloss.NewStyle().
			Background(colorSurface1).
			Foreground(colorLavender).
			Bold(true).
			Width(m.Width()).
			Render(line)
	}

	fmt.Fprint(w, line)
}

// Model is the history browser. Records never change while it runs;
// only selection and scrolling are mutable.
type Model struct {
	width    int
	height   int
	focus    focusPanel
	list     list.Model
	viewport viewport.Model
	records  []storage.CrashRecord
}

func NewModel(records []storage.CrashRecord) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle().Foreground(colorSubtext).Padding(1)

	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = crashItem{r}
	}
	l.SetItems(items)

	return Model{
		list:     l,
		viewport: viewport.New(0, 0),
		records:  records,
		focus:    focusList,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.focus == focusList {
				m.focus = focusDetail
			} else {
				m.focus = focusList
			}
			return m, nil
		case "g":
			if m.focus == focusDetail {
				m.viewport.GotoTop()
				return m, nil
			}
		case "G":
			if m.focus == focusDetail {
				m.viewport.GotoBottom()
				return m, nil
			}
		}
		if m.focus == focusList {
			m.list, cmd = m.list.Update(msg)
			m.refreshDetail()
			return m, cmd
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshDetail()
	}

	return m, nil
}

func (m *Model) layout() {
	sidebarWidth := 44
	if m.width < 110 {
		sidebarWidth = m.width / 3
	}
	if sidebarWidth < 26 {
		sidebarWidth = 26
	}
	panelHeight := max(m.height-4, 8)

	m.list.SetWidth(sidebarWidth - 2)
	m.list.SetHeight(panelHeight - 2)
	m.viewport.Width = max(m.width-sidebarWidth-6, 30)
	m.viewport.Height = panelHeight - 2
}

func (m *Model) refreshDetail() {
	sel, ok := m.list.SelectedItem().(crashItem)
	if !ok {
		m.viewport.SetContent(helpStyle.Padding(2).Render("No crashes in history"))
		return
	}
	m.viewport.SetContent(m.formatDetail(sel.CrashRecord))
}

func (m Model) formatDetail(r storage.CrashRecord) string {
	wrap := func(s string) string {
		return textutil.WrapText(s, max(m.viewport.Width-2, 20))
	}

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value) + "\n")
	}

	row("Bugcheck", fmt.Sprintf("0x%X %s", r.BugcheckCode, r.BugcheckName))
	if !r.CrashTime.IsZero() {
		row("Crashed", r.CrashTime.Format("2006-01-02 15:04:05"))
	}
	row("Analyzed", r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.Format != "" {
		row("Format", r.Format)
	}
	if r.DumpPath != "" {
		row("File", r.DumpPath)
	}
	if r.Driver != "" {
		row("Suspect", fmt.Sprintf("%s (via %s)", r.Driver, r.Strategy))
	} else {
		row("Suspect", "none identified")
	}

	confStyle := lipgloss.NewStyle().Foreground(confidenceColor(r.Confidence)).Bold(true)
	b.WriteString(labelStyle.Render("Confidence"))
	b.WriteString(confStyle.Render(fmt.Sprintf("%.0f%%", r.Confidence*100)) + "\n")

	if r.Cause != "" {
		b.WriteString("\n" + labelStyle.Render("Cause") + "\n")
		b.WriteString(wrap(r.Cause) + "\n")
	}

	if steps := remediationSteps(r.AnalysisJSON); len(steps) > 0 {
		b.WriteString("\n" + labelStyle.Render("Remediation") + "\n")
		for i, step := range steps {
			b.WriteString(wrap(fmt.Sprintf("%d. %s", i+1, step)) + "\n")
		}
	}

	if r.AIAnalysis != "" {
		b.WriteString("\n" + labelStyle.Render("AI Analysis") + "\n")
		b.WriteString(wrap(r.AIAnalysis) + "\n")
	}

	return b.String()
}

// remediationSteps recovers the step list from the stored result JSON.
func remediationSteps(analysisJSON string) []string {
	if analysisJSON == "" {
		return nil
	}
	var result engine.Result
	if err := json.Unmarshal([]byte(analysisJSON), &result); err != nil {
		return nil
	}
	return result.Remediation
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render("bsod crash history")
	count := helpStyle.Render(fmt.Sprintf(" %d crashes ", len(m.records)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, count)

	listBorder, detailBorder := borderStyle, borderStyle
	if m.focus == focusList {
		listBorder = focusedBorderStyle
	} else {
		detailBorder = focusedBorderStyle
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		listBorder.Render(m.list.View()),
		detailBorder.Render(m.viewport.View()),
	)

	footer := helpStyle.Render(" ↑/↓ select • tab switch pane • g/G top/bottom • q quit ")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Run opens the browser full screen.
func Run(records []storage.CrashRecord) error {
	p := tea.NewProgram(NewModel(records), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
