package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Transaction Ledger — append-only record of every submitted operation
// ---------------------------------------------------------------------------

// Kind classifies ledger records.
type Kind string

const (
	KindBuy        Kind = "buy"
	KindSell       Kind = "sell"
	KindCollect    Kind = "collect"
	KindDistribute Kind = "distribute"
)

// Status is the lifecycle state of a record. Every record starts
// pending and resolves exactly once to success or failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is one ledger entry. Amount semantics depend on the kind:
// buys record the filled token amount, sells the SOL received,
// transfers the amount moved.
type Record struct {
	ID         uuid.UUID        `json:"id"`
	Seq        uint64           `json:"seq"`
	Timestamp  time.Time        `json:"timestamp"`
	Kind       Kind             `json:"kind"`
	Wallet     solana.Pubkey    `json:"wallet"`
	Token      string           `json:"token"`
	Amount     decimal.Decimal  `json:"amount"`
	Status     Status           `json:"status"`
	TxHash     solana.Signature `json:"tx_hash,omitempty"`
	Error      string           `json:"error,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at,omitempty"`
}

// ErrUnknownRecord is returned when resolving a record ID that was
// never appended.
var ErrUnknownRecord = fmt.Errorf("ledger: unknown record")

// ErrAlreadyResolved is returned when a record is resolved twice.
var ErrAlreadyResolved = fmt.Errorf("ledger: already resolved")

// Sink receives ledger writes for durable storage. Sink failures are
// logged but never block or fail the in-memory ledger.
type Sink interface {
	Append(rec Record) error
	Resolve(rec Record) error
}

// Book is the in-memory ledger. Records are never removed or mutated
// after resolution.
type Book struct {
	mu      sync.RWMutex
	records []Record
	index   map[uuid.UUID]int
	seq     uint64

	sink Sink
}

// NewBook creates a ledger. sink may be nil.
func NewBook(sink Sink) *Book {
	return &Book{
		index: make(map[uuid.UUID]int),
		sink:  sink,
	}
}

// Append adds a new pending record and returns it with ID, sequence
// number and timestamp assigned.
func (b *Book) Append(kind Kind, wallet solana.Pubkey, token string, amount decimal.Decimal) Record {
	b.mu.Lock()
	b.seq++
	rec := Record{
		ID:        uuid.New(),
		Seq:       b.seq,
		Timestamp: time.Now(),
		Kind:      kind,
		Wallet:    wallet,
		Token:     token,
		Amount:    amount,
		Status:    StatusPending,
	}
	b.index[rec.ID] = len(b.records)
	b.records = append(b.records, rec)
	b.mu.Unlock()

	// Sink write happens outside the lock.
	if b.sink != nil {
		if err := b.sink.Append(rec); err != nil {
			log.Error().Err(err).Str("id", rec.ID.String()).Msg("ledger: sink append failed")
		}
	}

	log.Debug().
		Str("id", rec.ID.String()).
		Str("kind", string(kind)).
		Str("wallet", string(wallet)).
		Msg("ledger: appended")
	return rec
}

// MarkSuccess resolves a pending record as successful.
func (b *Book) MarkSuccess(id uuid.UUID, txHash solana.Signature, amount decimal.Decimal) error {
	return b.resolve(id, func(rec *Record) {
		rec.Status = StatusSuccess
		rec.TxHash = txHash
		rec.Amount = amount
	})
}

// MarkFailed resolves a pending record as failed.
func (b *Book) MarkFailed(id uuid.UUID, reason string) error {
	return b.resolve(id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Error = reason
	})
}

func (b *Book) resolve(id uuid.UUID, apply func(*Record)) error {
	b.mu.Lock()
	i, ok := b.index[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	if b.records[i].Status != StatusPending {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, b.records[i].Status)
	}
	apply(&b.records[i])
	b.records[i].ResolvedAt = time.Now()
	rec := b.records[i]
	b.mu.Unlock()

	if b.sink != nil {
		if err := b.sink.Resolve(rec); err != nil {
			log.Error().Err(err).Str("id", rec.ID.String()).Msg("ledger: sink resolve failed")
		}
	}

	log.Debug().
		Str("id", rec.ID.String()).
		Str("status", string(rec.Status)).
		Msg("ledger: resolved")
	return nil
}

// Get returns a record by ID.
func (b *Book) Get(id uuid.UUID) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return Record{}, false
	}
	return b.records[i], true
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (b *Book) Recent(n int) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := len(b.records)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Record, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, b.records[i])
	}
	return out
}

// Len returns the number of records.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Stats summarizes the ledger by status.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

func (b *Book) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var s Stats
	s.Total = len(b.records)
	for _, rec := range b.records {
		switch rec.Status {
		case StatusPending:
			s.Pending++
		case StatusSuccess:
			s.Success++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
