// Package tui provides a live terminal monitor for jackmixercc
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/jackmixercc/pkg/link"
	"github.com/james-see/jackmixercc/pkg/mixer"
)

// RefreshInterval is how often the monitor reads the engine
const RefreshInterval = 200 * time.Millisecond

// Acid-inspired color scheme
var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")
	alertRed   = lipgloss.Color("#FF0000")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	nameStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			Width(5).
			Align(lipgloss.Right)

	muteStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	soloStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			Bold(true)

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	successStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
)

// Model is the monitor state
type Model struct {
	engine   *mixer.Engine
	tracker  *link.Tracker
	title    string
	bar      progress.Model
	spinner  spinner.Model
	channels []mixer.Channel
	state    link.State
	dirty    bool
	pending  int
	width    int
}

type refreshMsg time.Time

// New creates a monitor over the engine; tracker may be nil
func New(engine *mixer.Engine, tracker *link.Tracker, title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	bar := progress.New(progress.WithSolidFill(string(acidGreen)), progress.WithoutPercentage())
	bar.Width = defaultBarWidth

	m := Model{
		engine:  engine,
		tracker: tracker,
		title:   title,
		bar:     bar,
		spinner: s,
	}
	m.refresh()
	return m
}

// Init starts the spinner and the refresh timer
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

func refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m *Model) refresh() {
	m.channels = m.engine.Channels()
	m.dirty = m.engine.Dirty()
	m.pending = m.engine.Pending()
	if m.tracker != nil {
		m.state = m.tracker.State()
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(minBarWidth, min(defaultBarWidth, msg.Width-40))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case refreshMsg:
		m.refresh()
		return m, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" " + strings.ToUpper(m.title) + " "))
	s.WriteString("\n")
	s.WriteString(m.viewLink())
	s.WriteString("\n\n")

	for i := range m.channels {
		s.WriteString(m.viewChannel(&m.channels[i]))
		s.WriteString("\n")
	}

	s.WriteString(m.viewSession())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("q: quit"))

	return boxStyle.Render(s.String())
}

func (m Model) viewLink() string {
	if m.tracker == nil {
		return offStyle.Render("midi link not tracked")
	}
	if m.state == link.Synced {
		return successStyle.Render("✓ midi synced")
	}
	return fmt.Sprintf("%s waiting for midi ports (%s)", m.spinner.View(), m.state)
}

func (m Model) viewChannel(ch *mixer.Channel) string {
	ratio := float64(mixer.Clamp(ch.Volume.Value)) / mixer.MaxValue
	return lipgloss.JoinHorizontal(lipgloss.Top,
		nameStyle.Render(mixer.DisplayName(ch.Name)),
		m.bar.ViewAs(ratio),
		valueStyle.Render(fmt.Sprintf("%d", ch.Volume.Value)),
		" ",
		flag("M", ch.Mute.On(), muteStyle),
		" ",
		flag("S", ch.Solo.On(), soloStyle),
	)
}

func flag(label string, on bool, style lipgloss.Style) string {
	if on {
		return style.Render(label)
	}
	return offStyle.Render(label)
}

func (m Model) viewSession() string {
	state := "saved"
	if m.dirty {
		state = "● unsaved changes"
	}
	return statusStyle.Render(fmt.Sprintf("session: %s • queued: %d", state, m.pending))
}

// Run shows the monitor until the user quits or ctx is cancelled
func Run(ctx context.Context, engine *mixer.Engine, tracker *link.Tracker, title string) error {
	p := tea.NewProgram(New(engine, tracker, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
