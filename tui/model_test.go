package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/ntuple2048/selfplay"
)

func TestModel_Update(t *testing.T) {
	feed := NewFeed()
	var m tea.Model = NewModel("ntuple2048", 100, feed)

	m, cmd := m.Update(EpisodeMsg{Index: 1, Score: 1200, MaxTile: 128, Steps: 150, Alpha: 0.1})
	if cmd == nil {
		t.Fatalf("episode did not re-arm the update wait")
	}
	m, _ = m.Update(EpisodeMsg{Index: 2, Score: 800, MaxTile: 256, Steps: 120, Alpha: 0.1})

	mm := m.(Model)
	if mm.episodes != 2 || mm.bestScore != 1200 || mm.bestTile != 256 || len(mm.recent) != 2 {
		t.Fatalf("model=%+v", mm)
	}
	if !strings.HasPrefix(mm.recent[0], "#2 ") {
		t.Fatalf("newest episode should come first: %q", mm.recent[0])
	}

	m, _ = m.Update(BlockMsg(selfplay.BlockSummary{From: 1, To: 2, AvgScore: 1000, MaxScore: 1200}))
	view := m.View()
	for _, want := range []string{"ntuple2048", "2 / 100", "1200", "avg = 1000"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd = m.Update(DoneMsg{Err: errors.New("boom")})
	if cmd != nil {
		t.Fatalf("done should stop waiting for updates")
	}
	if !strings.Contains(m.View(), "training stopped: boom") {
		t.Fatalf("view=%s", m.View())
	}
}

func TestModel_RecentIsBounded(t *testing.T) {
	var m tea.Model = NewModel("t", 0, NewFeed())
	for i := 1; i <= recentLines+5; i++ {
		m, _ = m.Update(EpisodeMsg{Index: i})
	}
	if got := len(m.(Model).recent); got != recentLines {
		t.Fatalf("recent=%d want %d", got, recentLines)
	}
}

func TestModel_Quit(t *testing.T) {
	var m tea.Model = NewModel("t", 0, NewFeed())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q produced %T", cmd())
	}
}

func TestFeed_DropsEpisodesAndReleasesAfterStop(t *testing.T) {
	feed := NewFeed()
	for i := 0; i < cap(feed.updates)+10; i++ {
		feed.Episode(selfplay.EpisodeSummary{Index: i})
	}
	if len(feed.updates) != cap(feed.updates) {
		t.Fatalf("buffer=%d", len(feed.updates))
	}

	done := make(chan struct{})
	go func() {
		feed.Block(selfplay.BlockSummary{})
		feed.Done(nil)
		close(done)
	}()
	feed.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("senders blocked after Stop")
	}
}
