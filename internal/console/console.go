// Package console is the line-mode operator UI. Log lines go to the output
// as they arrive; prompts are read from the input one line at a time.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dealyze/pos-demo/internal/session"
)

// Console implements session.Notifier on a pair of streams.
type Console struct {
	in  io.Reader
	out io.Writer

	mu sync.Mutex
}

// New creates a console reading answers from in and writing to out.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Notify prints line on its own line.
func (c *Console) Notify(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// StateChanged is a no-op; the console only shows log lines.
func (c *Console) StateChanged(session.State, int) {}

// Serve answers prompts with lines read from the input until ctx is done or
// the input ends, in which case it returns io.EOF.
func (c *Console) Serve(ctx context.Context, prompts <-chan session.PromptRequest) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case req := <-prompts:
			c.ask(req.Question)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-readErr:
				return err
			case line := <-lines:
				req.Answer(line)
			}
		}
	}
}

func (c *Console) ask(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, question)
}
