// Package tui is the terminal dashboard shown while training.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/ntuple2048/selfplay"
)

const recentLines = 10

type EpisodeMsg selfplay.EpisodeSummary

type BlockMsg selfplay.BlockSummary

// DoneMsg reports the end of training; Err is nil on a clean finish.
type DoneMsg struct{ Err error }

type TickMsg time.Time

// Feed carries training progress into the dashboard. Episodes are dropped
// when the dashboard falls behind; blocks and the final message wait for it
// unless it has been stopped.
type Feed struct {
	updates chan tea.Msg
	stop    chan struct{}
	once    sync.Once
}

func NewFeed() *Feed {
	return &Feed{updates: make(chan tea.Msg, 256), stop: make(chan struct{})}
}

// Stop releases senders once the dashboard is gone.
func (f *Feed) Stop() { f.once.Do(func() { close(f.stop) }) }

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.updates <- msg:
	case <-f.stop:
	}
}

func (f *Feed) Episode(s selfplay.EpisodeSummary) {
	select {
	case f.updates <- EpisodeMsg(s):
	default:
	}
}

func (f *Feed) Block(b selfplay.BlockSummary) { f.send(BlockMsg(b)) }
func (f *Feed) Done(err error)                { f.send(DoneMsg{Err: err}) }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	title     string
	total     int
	episodes  int
	bestScore int
	bestTile  int
	lastAlpha float32
	tdError   float32
	startTime time.Time
	now       time.Time
	recent    []string
	block     *selfplay.BlockSummary
	done      bool
	err       error
	updates   <-chan tea.Msg
}

func NewModel(title string, total int, feed *Feed) Model {
	now := time.Now()
	return Model{
		title:     title,
		total:     total,
		startTime: now,
		now:       now,
		updates:   feed.updates,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case EpisodeMsg:
		m.episodes = msg.Index
		m.lastAlpha = msg.Alpha
		m.tdError = msg.TDError
		if msg.Score > m.bestScore {
			m.bestScore = msg.Score
		}
		if msg.MaxTile > m.bestTile {
			m.bestTile = msg.MaxTile
		}
		line := fmt.Sprintf("#%-7d score %-7d tile %-6d steps %d", msg.Index, msg.Score, msg.MaxTile, msg.Steps)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > recentLines {
			m.recent = m.recent[:recentLines]
		}
		return m, waitForUpdate(m.updates)
	case BlockMsg:
		b := selfplay.BlockSummary(msg)
		m.block = &b
		return m, waitForUpdate(m.updates)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m Model) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func (m Model) View() string {
	elapsed := m.now.Sub(m.startTime)
	perSec := 0.0
	if elapsed >= time.Second {
		perSec = float64(m.episodes) / elapsed.Seconds()
	}

	stats := []string{
		m.row("Episodes", fmt.Sprintf("%d / %d", m.episodes, m.total)),
		m.row("Best score", fmt.Sprintf("%d", m.bestScore)),
		m.row("Best tile", fmt.Sprintf("%d", m.bestTile)),
		m.row("Alpha", fmt.Sprintf("%g", m.lastAlpha)),
		m.row("TD error", fmt.Sprintf("%.3f", m.tdError)),
		m.row("Elapsed", elapsed.Round(time.Second).String()),
		m.row("Episodes/sec", fmt.Sprintf("%.2f", perSec)),
	}

	sections := []string{
		titleStyle.Render(m.title),
		boxStyle.Render(strings.Join(stats, "\n")),
	}
	if m.block != nil {
		sections = append(sections, boxStyle.Render(strings.TrimRight(m.block.Format(), "\n")))
	}
	if len(m.recent) > 0 {
		sections = append(sections, "Recent episodes:\n"+strings.Join(m.recent, "\n"))
	}

	switch {
	case m.err != nil:
		sections = append(sections, errStyle.Render("training stopped: "+m.err.Error()))
	case m.done:
		sections = append(sections, "training finished")
	}
	sections = append(sections, helpStyle.Render("Press q to quit."))
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// Run shows the dashboard until the user quits or ctx ends, then stops feed.
func Run(ctx context.Context, m Model, feed *Feed) error {
	defer feed.Stop()
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
