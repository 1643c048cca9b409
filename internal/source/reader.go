package source

import (
	"context"
	"io"
	"sync"

	"github.com/setevik/faultwatch/internal/fault"
)

// ReaderSource reads JSON-lines faults from an io.Reader such as stdin or a file.
type ReaderSource struct {
	r      io.Reader
	name   string
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewReaderSource creates a ReaderSource. name identifies the input in logs.
func NewReaderSource(r io.Reader, name string) *ReaderSource {
	return &ReaderSource{r: r, name: name}
}

func (s *ReaderSource) Faults(ctx context.Context) (<-chan *fault.Fault, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	ch := make(chan *fault.Fault, 64)
	go func() {
		defer close(ch)
		defer cancel()
		scan(ctx, s.r, ch, s.name)
	}()
	return ch, nil
}

func (s *ReaderSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
