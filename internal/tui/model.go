// Package tui is the terminal dashboard shown while a search runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/search"
)

const (
	barWidth        = 40
	recentCapacity  = 10
	historyCapacity = 120
	tickInterval    = 500 * time.Millisecond
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	hitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	behaviorStyles = map[fly.Behavior]lipgloss.Style{
		fly.Stable:     lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		fly.FixedPoint: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		fly.Diverge:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		fly.Fault:      lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
	}
)

// ProgressMsg carries one classified candidate into the model.
type ProgressMsg search.Progress

// DoneMsg ends the dashboard.
type DoneMsg struct {
	Summary *search.Summary
	Err     error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model renders search progress. Only the bubbletea loop mutates it.
type Model struct {
	title     string
	total     int
	evaluated int
	cached    int
	counts    map[fly.Behavior]int
	recent    []search.Progress
	rates     []float64
	bar       progress.Model
	lastCount int
	started   time.Time
	now       time.Time

	done    bool
	aborted bool
	summary *search.Summary
	err     error
}

func NewModel(title string, total int) Model {
	now := time.Now()
	return Model{
		title:   title,
		total:   total,
		counts:  make(map[fly.Behavior]int),
		bar:     progress.New(progress.WithGradient("#00cccc", "#00ff87"), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		started: now,
		now:     now,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	case ProgressMsg:
		p := search.Progress(msg)
		m.evaluated = p.Evaluated
		if p.Total > 0 {
			m.total = p.Total
		}
		m.counts[p.Behavior]++
		if p.Cached {
			m.cached++
		}
		m.recent = append(m.recent, p)
		if len(m.recent) > recentCapacity {
			m.recent = m.recent[len(m.recent)-recentCapacity:]
		}
	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	case tickMsg:
		now := time.Time(msg)
		if secs := now.Sub(m.now).Seconds(); secs > 0 {
			m.rates = append(m.rates, float64(m.evaluated-m.lastCount)/secs)
			if len(m.rates) > historyCapacity {
				m.rates = m.rates[1:]
			}
		}
		m.now = now
		m.lastCount = m.evaluated
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// Aborted reports whether the user quit before the search finished.
func (m Model) Aborted() bool { return m.aborted }

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("zoosearch  "+m.title) + "\n")

	s.WriteString(labelStyle.Render("Progress") + valueStyle.Render(fmt.Sprintf("%s %d/%d", m.bar.ViewAs(fraction(m.evaluated, m.total)), m.evaluated, m.total)) + "\n")
	s.WriteString(labelStyle.Render("Elapsed") + valueStyle.Render(m.now.Sub(m.started).Round(time.Second).String()) + "\n")
	if m.cached > 0 {
		s.WriteString(labelStyle.Render("Ledger") + valueStyle.Render(fmt.Sprintf("%d replayed", m.cached)) + "\n")
	}
	for b := fly.Stable; b <= fly.Fault; b++ {
		s.WriteString(labelStyle.Render(b.String()) + behaviorStyles[b].Render(fmt.Sprintf("%d", m.counts[b])) + "\n")
	}

	if len(m.rates) >= 2 {
		chart := asciigraph.Plot(m.rates, asciigraph.Height(4), asciigraph.Width(barWidth), asciigraph.Caption("candidates/s"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	if len(m.recent) > 0 {
		s.WriteString("\n")
		for _, p := range m.recent {
			mark := ""
			if p.Cached {
				mark = dimStyle.Render(" (ledger)")
			}
			s.WriteString(fmt.Sprintf("  %6d  %s  %s%s\n", p.Index, p.Triple, behaviorStyles[p.Behavior].Render(p.Behavior.String()), mark))
		}
	}

	switch {
	case m.err != nil:
		s.WriteString("\n" + errStyle.Render("error: "+m.err.Error()) + "\n")
	case m.done && m.summary != nil && m.summary.Hit != nil:
		h := m.summary.Hit
		s.WriteString("\n" + hitStyle.Render(fmt.Sprintf("hit #%d %s: %s", h.Index, h.Triple, h.Result.Behavior)) + "\n")
	case m.done:
		s.WriteString("\n" + dimStyle.Render("exhausted without a hit") + "\n")
	default:
		s.WriteString(helpStyle.Render("q quit") + "\n")
	}
	return s.String()
}

func fraction(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(1, float64(n)/float64(total))
}
