// Package memory keeps mirror rows in process. The worker uses it when no
// spreadsheet is configured, and tests use it to inspect what was written.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "finanzas/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.Row
	fail error
}

var _ ports.TransactionWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, row ports.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.rows...)
}

// FailWith makes subsequent appends return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}
