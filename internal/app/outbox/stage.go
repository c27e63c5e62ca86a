package outbox

import (
	"context"
	"sync"
)

type stageKey struct{}

// Stage holds the records added while one command runs. Buffering outboxes
// add to the stage bound to ctx, so records of a command that fails or
// rolls back can be dropped without touching other commands.
type Stage struct {
	mu      sync.Mutex
	records []EventRecord
}

// WithStage binds a new stage to ctx. When ctx already carries one it is
// returned with nested=true and the outer command owns it.
func WithStage(ctx context.Context) (context.Context, *Stage, bool) {
	if st, ok := StageFrom(ctx); ok {
		return ctx, st, true
	}
	st := &Stage{}
	return context.WithValue(ctx, stageKey{}, st), st, false
}

func StageFrom(ctx context.Context) (*Stage, bool) {
	st, ok := ctx.Value(stageKey{}).(*Stage)
	return st, ok && st != nil
}

func (s *Stage) Add(rec EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Take empties the stage and returns what it held.
func (s *Stage) Take() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	s.records = nil
	return out
}
