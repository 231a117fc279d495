// Package history persists chat exchanges per coding problem and serves
// them back in pages, newest first.
package history

import (
	"context"
	"errors"

	"github.com/simonyos/whisper/internal/llm"
)

var (
	ErrEmptyProblemID = errors.New("problem id must not be empty")
	ErrCorruptRecord  = errors.New("history record is corrupt")
)

// Page is one slice of a problem's history.
// Messages are ordered newest first, so concatenating pages in the order
// they were fetched and reversing the result yields the full history.
type Page struct {
	TotalCount int
	Messages   []llm.Message
}

// Chronological returns the page oldest first, for display
func (p Page) Chronological() []llm.Message {
	out := make([]llm.Message, len(p.Messages))
	for i, msg := range p.Messages {
		out[len(p.Messages)-1-i] = msg
	}
	return out
}

// Store defines the interface for chat history persistence
type Store interface {
	// Append adds messages to the end of a problem's history
	Append(ctx context.Context, problemID string, messages []llm.Message) error

	// Fetch returns up to limit messages, counting back from the most
	// recent and skipping offset of them. limit <= 0 returns everything
	// older than offset.
	Fetch(ctx context.Context, problemID string, limit, offset int) (Page, error)

	// Delete removes a problem's history
	Delete(ctx context.Context, problemID string) error

	// List returns the ids of problems with stored history
	List(ctx context.Context) ([]string, error)
}

// pageBounds returns the chronological index range [start, end) a fetch covers
func pageBounds(total, limit, offset int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return total, total
	}
	end = total - offset
	start = 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return start, end
}

// newestFirst returns a reversed copy of msgs
func newestFirst(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out
}

// All pages through a problem's history and returns it oldest first
func All(ctx context.Context, s Store, problemID string, pageSize int) ([]llm.Message, error) {
	var collected []llm.Message
	offset := 0
	for {
		page, err := s.Fetch(ctx, problemID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		collected = append(collected, page.Messages...)
		offset += len(page.Messages)
		if len(page.Messages) == 0 || offset >= page.TotalCount {
			break
		}
	}
	return newestFirst(collected), nil
}
