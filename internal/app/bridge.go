package app

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dealyze/pos-demo/internal/session"
)

const bridgeBuffer = 256

// LineMsg carries one session notification.
type LineMsg struct {
	At   time.Time
	Text string
}

// StateMsg reports a controller state change.
type StateMsg struct {
	State  session.State
	Queued int
}

// PromptMsg opens an operator prompt.
type PromptMsg struct{ Request session.PromptRequest }

// Bridge implements session.Notifier by turning notifications into Bubble
// Tea messages. Next must be re-issued after each message, the same way a
// read loop is.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewBridge creates an open bridge.
func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, bridgeBuffer),
		done: make(chan struct{}),
	}
}

// Notify queues a LineMsg.
func (b *Bridge) Notify(line string) {
	b.send(LineMsg{At: time.Now(), Text: line})
}

// StateChanged queues a StateMsg.
func (b *Bridge) StateChanged(s session.State, queued int) {
	b.send(StateMsg{State: s, Queued: queued})
}

// Close unblocks senders and Next; later notifications are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// Next returns a command that waits for the next notification.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}
