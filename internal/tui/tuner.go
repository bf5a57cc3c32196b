// Package tui provides an interactive threshold tuner over precomputed scores.
package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yashubustudio/papersift/internal/report"
	"yashubustudio/papersift/selection"
)

// Presets are the strategies cycled with tab. A Fixed entry is inserted at
// the current cutoff whenever the user switches to manual mode.
func Presets() []selection.ThresholdSpec {
	return []selection.ThresholdSpec{
		selection.Auto(),
		selection.Lenient(),
		selection.Percentile{P: 50},
		selection.Percentile{P: 25},
		selection.Percentile{P: 10},
		selection.Fixed{},
	}
}

const (
	fixedStep      = 0.01
	kStep          = 0.1
	percentileStep = 1.0
)

// Model is the bubbletea model of the tuner. Scores are never recomputed;
// every keypress only re-resolves the cutoff.
type Model struct {
	candidates []selection.Candidate
	scores     []float64
	presets    []selection.ThresholdSpec
	preset     int
	spec       selection.ThresholdSpec
	result     selection.Result
	err        error
	confirmed  bool
	bins       int
	format     *report.Formatter
}

// New creates a tuner starting at initial.
func New(candidates []selection.Candidate, scores []float64, initial selection.ThresholdSpec) Model {
	m := Model{
		candidates: candidates,
		scores:     scores,
		presets:    Presets(),
		bins:       20,
		format:     report.New(),
	}
	if initial == nil {
		initial = selection.Auto()
	}
	m.preset = -1
	for i, p := range m.presets {
		if p == initial {
			m.preset = i
		}
	}
	m.apply(initial)
	if m.spec == nil {
		m.spec = initial
	}
	return m
}

// Spec returns the strategy currently shown.
func (m Model) Spec() selection.ThresholdSpec { return m.spec }

// Result returns the selection for the current strategy.
func (m Model) Result() selection.Result { return m.result }

// Confirmed reports whether the user accepted the strategy with enter.
func (m Model) Confirmed() bool { return m.confirmed }

// Err returns the error of the last resolution, if any.
func (m Model) Err() error { return m.err }

func (m *Model) apply(spec selection.ThresholdSpec) {
	res, err := selection.Apply(m.candidates, m.scores, spec)
	if err != nil {
		m.err = err
		return
	}
	m.spec = spec
	m.result = res
	m.err = nil
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "enter":
		if m.err == nil {
			m.confirmed = true
			return m, tea.Quit
		}
	case "tab":
		m.cycle(1)
	case "shift+tab":
		m.cycle(-1)
	case "right", "l", "up", "k":
		m.nudge(1)
	case "left", "h", "down", "j":
		m.nudge(-1)
	}
	return m, nil
}

func (m *Model) cycle(dir int) {
	n := len(m.presets)
	m.preset = ((m.preset+dir)%n + n) % n
	next := m.presets[m.preset]
	if _, ok := next.(selection.Fixed); ok {
		next = selection.Fixed{Value: round(m.result.Cutoff, 4)}
	}
	m.apply(next)
}

// nudge moves the parameter of the current strategy one step. Larger cutoffs
// select fewer papers, so "up" always means stricter.
func (m *Model) nudge(dir int) {
	var next selection.ThresholdSpec
	switch s := m.spec.(type) {
	case selection.Fixed:
		next = selection.Fixed{Value: round(clamp(s.Value+float64(dir)*fixedStep, -1, 1), 2)}
	case selection.AutoStatistical:
		next = selection.AutoStatistical{K: round(s.K+float64(dir)*kStep, 1)}
	case selection.Percentile:
		p := clamp(s.P-float64(dir)*percentileStep, percentileStep, 100)
		next = selection.Percentile{P: p}
	default:
		return
	}
	m.apply(next)
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Threshold tuner"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Strategy: %s\n", m.spec)
	fmt.Fprintf(&sb, "Cutoff:   %.4f\n", m.result.Cutoff)
	fmt.Fprintf(&sb, "Selected: %d of %d\n\n", len(m.result.Selected), len(m.scores))
	sb.WriteString(m.format.Histogram(m.scores, m.bins, m.result.Cutoff))
	sb.WriteString("\n\n")
	if m.err != nil {
		sb.WriteString(errStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("tab: next strategy  ←/→: adjust  enter: accept  q: cancel"))
	sb.WriteString("\n")
	return sb.String()
}

// Run opens the tuner on the terminal and returns the chosen strategy.
// ok is false when the user cancelled.
func Run(candidates []selection.Candidate, scores []float64, initial selection.ThresholdSpec) (selection.ThresholdSpec, bool, error) {
	final, err := tea.NewProgram(New(candidates, scores, initial)).Run()
	if err != nil {
		return nil, false, err
	}
	m, ok := final.(Model)
	if !ok || !m.Confirmed() {
		return initial, false, nil
	}
	return m.Spec(), true, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// round keeps the given number of decimal places.
func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
