package panel

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
)

const commandTimeout = 5 * time.Second

// tickMsg is the periodic refresh tick.
type tickMsg struct{}

// signalMsg carries a daemon notification.
type signalMsg struct {
	Signal daemon.Signal
}

// refreshedMsg reports that a refresh finished. The view always reads the
// ledger's installed snapshot, which may be newer than this refresh's.
type refreshedMsg struct {
	Err error
}

// startedMsg reports an AddFact round trip.
type startedMsg struct {
	Name string
	Err  error
}

// stoppedMsg reports a StopTracking round trip.
type stoppedMsg struct {
	Fact    model.Fact
	Stopped bool
	Err     error
}

// Menu is the interactive popup: an entry to start an activity, today's
// list, and a stop action.
type Menu struct {
	panel    *Panel
	input    textinput.Model
	snap     *ledger.Snapshot
	interval time.Duration
	signals  <-chan daemon.Signal

	status string
	err    error
}

// NewMenu builds the menu. signals may be nil.
func NewMenu(p *Panel, interval time.Duration, signals <-chan daemon.Signal) Menu {
	ti := textinput.New()
	ti.Placeholder = "Enter activity..."
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()

	return Menu{
		panel:    p,
		input:    ti,
		snap:     p.Ledger().Snapshot(),
		interval: interval,
		signals:  signals,
	}
}

// RunMenu shows the menu until the user quits or ctx is done.
func RunMenu(ctx context.Context, p *Panel, interval time.Duration, signals <-chan daemon.Signal) error {
	prog := tea.NewProgram(NewMenu(p, interval, signals), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Menu) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshCmd(), m.tickCmd(), m.waitSignalCmd())
}

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			name := strings.TrimSpace(m.input.Value())
			if name == "" {
				m.err = ledger.ErrEmptyActivity
				return m, nil
			}
			m.err = nil
			m.status = ""
			return m, m.startCmd(name)
		case "ctrl+s":
			m.err = nil
			m.status = ""
			return m, m.stopCmd()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-8, 20)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case signalMsg:
		if msg.Signal == daemon.ToggleCalled {
			return m, m.waitSignalCmd()
		}
		return m, tea.Batch(m.refreshCmd(), m.waitSignalCmd())

	case refreshedMsg:
		m.snap = m.panel.Ledger().Snapshot()
		m.err = msg.Err
		return m, nil

	case startedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.input.Reset()
		m.snap = m.panel.Ledger().Snapshot()
		m.status = "Started " + msg.Name
		return m, nil

	case stoppedMsg:
		switch {
		case msg.Err != nil:
			m.err = msg.Err
		case !msg.Stopped:
			m.status = "Nothing to stop"
		default:
			m.status = "Stopped " + msg.Fact.Name
		}
		m.snap = m.panel.Ledger().Snapshot()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Menu) View() string {
	now := m.panel.Now()

	var sb strings.Builder
	sb.WriteString(activeStyle.Render(Label(m.snap, now)))
	sb.WriteString("\n\n")

	entry := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("What are you doing?"),
		m.input.View(),
	)
	sb.WriteString(sectionStyle.Render(entry))
	sb.WriteString("\n")

	list := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Todays activities"),
		RenderList(Rows(m.snap, now)),
	)
	sb.WriteString(sectionStyle.Render(list))
	sb.WriteString("\n")

	if totals := RenderTotals(m.snap, now); totals != "" {
		sb.WriteString(dimStyle.Render(totals))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	} else if m.status != "" {
		sb.WriteString(m.status)
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render("enter start • ctrl+s Stop tracking • esc quit"))
	return sb.String()
}

func (m Menu) refreshCmd() tea.Cmd {
	p := m.panel
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := p.Refresh(ctx)
		return refreshedMsg{Err: err}
	}
}

func (m Menu) startCmd(name string) tea.Cmd {
	p := m.panel
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := p.Start(ctx, name)
		return startedMsg{Name: name, Err: err}
	}
}

func (m Menu) stopCmd() tea.Cmd {
	p := m.panel
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		f, stopped, err := p.Stop(ctx)
		return stoppedMsg{Fact: f, Stopped: stopped, Err: err}
	}
}

func (m Menu) tickCmd() tea.Cmd {
	interval := m.interval
	if interval <= 0 {
		interval = time.Minute
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// waitSignalCmd blocks for the next daemon signal. It returns nil when there
// is no signal source.
func (m Menu) waitSignalCmd() tea.Cmd {
	if m.signals == nil {
		return nil
	}
	signals := m.signals
	return func() tea.Msg {
		s, ok := <-signals
		if !ok {
			return nil
		}
		return signalMsg{Signal: s}
	}
}
