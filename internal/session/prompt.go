package session

import (
	"context"

	"github.com/google/uuid"
)

// PromptRequest asks the operator one question. The UI shows Question and
// calls Answer exactly once with the raw line the operator typed.
type PromptRequest struct {
	ID       uuid.UUID
	Kind     PromptKind
	Question string

	reply chan string
}

// NewPrompt creates an unanswered prompt.
func NewPrompt(kind PromptKind, question string) PromptRequest {
	return PromptRequest{
		ID:       uuid.New(),
		Kind:     kind,
		Question: question,
		reply:    make(chan string, 1),
	}
}

// Answer resolves the prompt. Calls after the first are ignored.
func (r PromptRequest) Answer(line string) {
	select {
	case r.reply <- line:
	default:
	}
}

// Wait blocks until the prompt is answered or ctx is done.
func (r PromptRequest) Wait(ctx context.Context) (string, error) {
	select {
	case line := <-r.reply:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
