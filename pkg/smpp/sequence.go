package smpp

import "sync"

// MinSequence and MaxSequence bound the sequence_number space SMPP 3.4
// assigns to request PDUs; generators wrap back to MinSequence after
// MaxSequence rather than overflowing into the reserved high bit.
const (
	MinSequence uint32 = 0x00000001
	MaxSequence uint32 = 0x7FFFFFFF
)

// SequenceGenerator produces the sequence_number for each outbound request.
// The session engine treats it as a fully injectable strategy: a caller
// who supplies their own generator gets no persistence, no locking
// assumptions, nothing beyond this one method.
type SequenceGenerator interface {
	Next() uint32
}

type monotonicSequenceGenerator struct {
	mu  sync.Mutex
	cur uint32
}

// NewSequenceGenerator returns the default in-memory SequenceGenerator,
// starting at MinSequence and wrapping back to it after MaxSequence.
func NewSequenceGenerator() SequenceGenerator {
	return &monotonicSequenceGenerator{}
}

func (g *monotonicSequenceGenerator) Next() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cur == 0 || g.cur >= MaxSequence {
		g.cur = MinSequence
	} else {
		g.cur++
	}
	return g.cur
}

// SequenceStore persists the last-issued sequence number so a restarted
// process can keep handing out sequence numbers the SMSC has never seen,
// rather than re-using one from before the restart. internal/seqstore
// provides in-memory and JSON-file implementations.
type SequenceStore interface {
	Load() (uint32, error)
	Save(seq uint32) error
}

// PersistentSequenceGenerator is a SequenceGenerator backed by a
// SequenceStore. Save errors are logged, not returned: a caller who wires
// persistence still wants Next() to keep handing out sequence numbers even
// if the backing store is briefly unavailable.
type PersistentSequenceGenerator struct {
	mu     sync.Mutex
	cur    uint32
	store  SequenceStore
	Logger Logger
}

// NewPersistentSequenceGenerator loads the last-saved sequence number from
// store (0 if the store has never been written) and resumes from there.
func NewPersistentSequenceGenerator(store SequenceStore) (*PersistentSequenceGenerator, error) {
	cur, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &PersistentSequenceGenerator{cur: cur, store: store}, nil
}

func (g *PersistentSequenceGenerator) Next() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cur == 0 || g.cur >= MaxSequence {
		g.cur = MinSequence
	} else {
		g.cur++
	}
	if err := g.store.Save(g.cur); err != nil && g.Logger != nil {
		g.Logger.Warn("failed to persist sequence number", "sequence", g.cur, "error", err)
	}
	return g.cur
}
