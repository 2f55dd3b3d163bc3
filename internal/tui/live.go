package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/dyncouple/internal/coordinator"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const (
	historyLen = 60
	maxErrors  = 6
	barWidth   = 36
)

// RoundMsg carries one completed round into the program.
type RoundMsg coordinator.RoundReport

// DoneMsg carries the terminal status of the supervised run.
type DoneMsg coordinator.Status

type engineRow struct {
	id       string
	time     float64
	lag      float64
	steps    int
	failures int
	failed   bool
}

// Model renders a coupled run as it progresses. It is driven entirely by
// RoundMsg and DoneMsg; it never touches the coordinator.
type Model struct {
	title  string
	start  float64
	stop   float64
	cancel context.CancelFunc

	round   coordinator.RoundReport
	rounds  int
	engines []engineRow
	index   map[string]int
	lag     []float64
	errors  []string
	nerrors int
	regimes int

	done   bool
	status coordinator.Status

	width int
}

// New returns a view for a run spanning [start, stop]. cancel is invoked
// when the user quits before the run has finished.
func New(title string, start, stop float64, cancel context.CancelFunc) Model {
	return Model{
		title:  title,
		start:  start,
		stop:   stop,
		cancel: cancel,
		index:  make(map[string]int),
		lag:    make([]float64, 0, historyLen),
		width:  80,
	}
}

// Observer forwards every round report to p.
func Observer(p *tea.Program) coordinator.Observer {
	return coordinator.ObserverFunc(func(r coordinator.RoundReport) {
		p.Send(RoundMsg(r))
	})
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Done() bool { return m.done }

func (m Model) Status() coordinator.Status { return m.status }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case RoundMsg:
		m.observe(coordinator.RoundReport(msg))
	case DoneMsg:
		m.done = true
		m.status = coordinator.Status(msg)
	}
	return m, nil
}

func (m *Model) observe(r coordinator.RoundReport) {
	if m.rounds > 0 && r.Regime != m.round.Regime {
		m.regimes++
	}
	m.round = r
	m.rounds++

	for _, e := range r.Engines {
		i, ok := m.index[e.ID]
		if !ok {
			i = len(m.engines)
			m.index[e.ID] = i
			m.engines = append(m.engines, engineRow{id: e.ID})
		}
		row := &m.engines[i]
		row.time, row.lag, row.failed = e.Time, e.Lag, e.Failed
		row.steps += e.Steps
		if e.Failed {
			row.failures++
		}
	}

	m.lag = append(m.lag, r.Lag())
	if len(m.lag) > historyLen {
		m.lag = m.lag[1:]
	}

	for _, err := range r.Errors {
		m.nerrors++
		m.errors = append(m.errors, fmt.Sprintf("#%d %s", r.Iteration, err))
	}
	if len(m.errors) > maxErrors {
		m.errors = m.errors[len(m.errors)-maxErrors:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	icon, state := green.Render("●"), green.Render("running")
	switch {
	case m.done && m.status.Err != nil:
		icon, state = red.Render("✕"), red.Render("failed")
	case m.done:
		icon, state = cyan.Render("✓"), cyan.Render("finished")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", icon, cyan.Render(m.title), state))

	progress := 0.0
	if span := m.stop - m.start; span > 0 && m.rounds > 0 {
		progress = (m.round.Time - m.start) / span
	}
	progress = min(max(progress, 0), 1)
	filled := int(progress * barWidth)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	timeStr := fmt.Sprintf("%.2f/%.2f", m.round.Time, m.stop)
	if m.rounds == 0 {
		timeStr = fmt.Sprintf("%.2f/%.2f", m.start, m.stop)
	}
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar, dim.Render(timeStr), dim.Render(fmt.Sprintf("round %d", m.round.Iteration))))

	if m.round.Regime != "" {
		b.WriteString(fmt.Sprintf("   %s %s  %s\n\n",
			dim.Render("regime"), magenta.Render(m.round.Regime),
			dim.Render(fmt.Sprintf("%d switches", m.regimes))))
	}

	b.WriteString(dim.Render(fmt.Sprintf("   %-14s %12s %10s %8s %6s", "engine", "time", "lag", "steps", "fail")) + "\n")
	for _, e := range m.engines {
		name := white.Render(fmt.Sprintf("%-14s", e.id))
		if e.failed {
			name = yellow.Render(fmt.Sprintf("%-14s", e.id))
		}
		b.WriteString(fmt.Sprintf("   %s %12.4f %10.4f %8d %6d\n", name, e.time, e.lag, e.steps, e.failures))
	}

	if len(m.lag) > 1 {
		b.WriteString(fmt.Sprintf("\n   %s %s\n", dim.Render("lag"), cyan.Render(sparkline(m.lag, 24))))
	}

	if m.round.Output {
		b.WriteString(dim.Render(fmt.Sprintf("   output #%d", m.round.OutputIndex)) + "\n")
	}
	if len(m.round.Checkpoints) > 0 {
		b.WriteString(green.Render(fmt.Sprintf("   checkpoint at %v", m.round.Checkpoints)) + "\n")
	}

	if m.nerrors > 0 {
		b.WriteString("\n" + yellow.Render(fmt.Sprintf("   %d isolated errors", m.nerrors)) + "\n")
		for _, line := range m.errors {
			b.WriteString(dim.Render("   "+truncate(line, m.width-4)) + "\n")
		}
	}

	if m.done && m.status.Err != nil {
		b.WriteString("\n" + red.Render("   "+truncate(m.status.Err.Error(), m.width-4)) + "\n")
	}

	b.WriteString("\n" + dim.Render("   q quit") + "\n")
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	var sb strings.Builder
	for _, v := range data {
		idx := int((v - minVal) / rang * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Run starts the program, attaches it to c as an observer and supervises
// the coupled run. The view stays up after the run ends until the user
// quits; quitting early cancels the run and waits for it to unwind.
func Run(ctx context.Context, title string, c *coordinator.Coordinator, start, stop float64) (coordinator.Status, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(title, start, stop, cancel), tea.WithAltScreen())
	c.Observe(Observer(p))

	status := coordinator.Supervise(ctx, c)
	final := make(chan coordinator.Status, 1)
	go func() {
		st := <-status
		final <- st
		p.Send(DoneMsg(st))
	}()

	_, err := p.Run()
	cancel()
	return <-final, err
}
