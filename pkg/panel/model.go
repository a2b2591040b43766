package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/chewxy/math32"
	"github.com/itohio/loadrig/pkg/monitor"
	"github.com/itohio/loadrig/pkg/session"
)

const (
	refreshInterval = 100 * time.Millisecond
	sparkWidth      = 60
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#74c7ec")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
	hotStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387")).Bold(true)
	lampOn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	paneStyle  = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475a")).
			Padding(0, 1)
)

// Status exposes the controller state shown on the panel.
type Status interface {
	State() session.State
	Elapsed() time.Duration
}

// Meter exposes live statistics shown on the panel.
type Meter interface {
	Stats() monitor.Stats
	Values(dst []float32, maxPoints int) []float32
}

type tickMsg time.Time

// Model is the Bubble Tea model of the operator panel.
type Model struct {
	panel    *Panel
	status   Status
	meter    Meter
	duration time.Duration

	values []float32
	width  int
}

// NewModel creates the panel model. Sessions last duration.
func NewModel(p *Panel, status Status, meter Meter, duration time.Duration) Model {
	return Model{
		panel:    p,
		status:   status,
		meter:    meter,
		duration: duration,
		width:    sparkWidth,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles key presses and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.panel.Release()
			return m, tea.Quit
		case "r":
			m.panel.Press(KeyRecord)
		case "f", "right":
			m.panel.Press(KeyForward)
		case "b", "left":
			m.panel.Press(KeyBack)
		case " ":
			m.panel.Release()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = max(10, min(sparkWidth, msg.Width-6))
		return m, nil
	case tickMsg:
		m.values = m.meter.Values(m.values, m.width)
		return m, tick()
	}
	return m, nil
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("loadrig"))
	b.WriteString("  ")
	b.WriteString(m.lamp())
	b.WriteString("  ")

	switch m.status.State() {
	case session.Recording:
		b.WriteString(hotStyle.Render(fmt.Sprintf("recording %4.1fs / %.0fs",
			m.status.Elapsed().Seconds(), m.duration.Seconds())))
	default:
		b.WriteString(mutedStyle.Render("idle"))
	}
	b.WriteString("\n\n")

	st := m.meter.Stats()
	fmt.Fprintf(&b, "value %10.3f   mean %10.3f   sd %8.3f\n", st.Smoothed, st.Mean, st.StdDev)
	fmt.Fprintf(&b, "min   %10.3f   max  %10.3f   rate %6.1f Hz\n", st.Min, st.Max, st.Rate)
	b.WriteString(motorLabel(m.panel))
	b.WriteString("\n\n")
	b.WriteString(Sparkline(m.values))
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("r record  f/b jog  space release  q quit"))

	return paneStyle.Render(b.String())
}

func (m Model) lamp() string {
	if m.panel.Indicator() {
		return lampOn.Render("●")
	}
	return mutedStyle.Render("○")
}

func motorLabel(p *Panel) string {
	fwd, back := p.Forward(), p.Back()
	switch {
	case fwd && !back:
		return "motor forward"
	case back && !fwd:
		return "motor back"
	default:
		return mutedStyle.Render("motor stopped")
	}
}

// Sparkline renders values as a single line of block characters scaled
// between their minimum and maximum.
func Sparkline(values []float32) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, v := range values {
		if math32.IsNaN(v) {
			continue
		}
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}

	top := len(sparkLevels) - 1
	out := make([]rune, len(values))
	for i, v := range values {
		switch {
		case math32.IsNaN(v) || math32.IsInf(lo, 0):
			out[i] = ' '
		case hi == lo:
			out[i] = sparkLevels[top/2]
		default:
			out[i] = sparkLevels[int((v-lo)/(hi-lo)*float32(top)+0.5)]
		}
	}
	return string(out)
}

// Run shows the panel until the operator quits or ctx is cancelled.
func Run(ctx context.Context, m Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run panel: %w", err)
	}
	return nil
}
