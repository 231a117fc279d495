package history

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/simonyos/whisper/internal/llm"
)

// MemoryStore keeps history for the lifetime of the process only
type MemoryStore struct {
	mu       sync.RWMutex
	problems map[string][]llm.Message
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{problems: make(map[string][]llm.Message)}
}

func (s *MemoryStore) Append(ctx context.Context, problemID string, messages []llm.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(problemID) == "" {
		return ErrEmptyProblemID
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		s.problems[problemID] = append(s.problems[problemID], cloneMessage(msg))
	}
	return nil
}

func (s *MemoryStore) Fetch(ctx context.Context, problemID string, limit, offset int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if strings.TrimSpace(problemID) == "" {
		return Page{}, ErrEmptyProblemID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.problems[problemID]
	start, end := pageBounds(len(msgs), limit, offset)
	page := newestFirst(msgs[start:end])
	for i := range page {
		page[i] = cloneMessage(page[i])
	}
	return Page{TotalCount: len(msgs), Messages: page}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, problemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.problems, problemID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.problems))
	for id, msgs := range s.problems {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// cloneMessage copies the structured output so stored history does not
// share memory with the caller, matching what a round trip through the
// file log gives
func cloneMessage(msg llm.Message) llm.Message {
	if msg.Output != nil {
		out := *msg.Output
		if out.Hints != nil {
			out.Hints = append(make([]string, 0, len(out.Hints)), out.Hints...)
		}
		msg.Output = &out
	}
	return msg
}

var _ Store = (*MemoryStore)(nil)
