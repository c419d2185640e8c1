package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/session"
)

// eventBus carries session and health changes from service goroutines into
// the Bubbletea loop. Each kind keeps only its latest value, so a burst of
// changes collapses but the final state is never lost.
type eventBus struct {
	mu      sync.Mutex
	session *session.Session
	health  *bool
	ready   chan struct{}
}

func newEventBus() *eventBus {
	return &eventBus{ready: make(chan struct{}, 1)}
}

func (b *eventBus) postSession(s session.Session) {
	b.mu.Lock()
	b.session = &s
	b.mu.Unlock()
	b.signal()
}

func (b *eventBus) postHealth(ok bool) {
	b.mu.Lock()
	b.health = &ok
	b.mu.Unlock()
	b.signal()
}

func (b *eventBus) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// take returns the next pending message, session first, or nil when both
// slots are empty.
func (b *eventBus) take() tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	var msg tea.Msg
	switch {
	case b.session != nil:
		msg = sessionChangedMsg{session: *b.session}
		b.session = nil
	case b.health != nil:
		msg = healthStatusMsg{available: *b.health}
		b.health = nil
	default:
		return nil
	}
	if b.session != nil || b.health != nil {
		b.signal()
	}
	return msg
}

// wait blocks until a message is pending.
func (b *eventBus) wait() tea.Msg {
	for {
		<-b.ready
		if msg := b.take(); msg != nil {
			return msg
		}
	}
}

func waitEvent(b *eventBus) tea.Cmd {
	return b.wait
}
