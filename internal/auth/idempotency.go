package auth

import (
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// IdempotencyGuard is a process-local, short-TTL record of fingerprints
// currently being enqueued, layered in front of the coordinator's
// cache-miss path. It does not change externally observable behavior: the
// upstream result store remains the source of truth for whether a
// fingerprint has been seen. It only collapses duplicate enqueues that
// land on the same process within the same short window (e.g. retried
// client requests for the same image arriving milliseconds apart), saving
// a redundant queue message.
type IdempotencyGuard struct {
	db  *badger.DB
	ttl time.Duration
}

// NewIdempotencyGuard opens an in-memory Badger instance. Nothing here
// needs to survive a process restart — on restart, the guard simply starts
// empty and the upstream cache lookup remains authoritative.
func NewIdempotencyGuard(ttl time.Duration) (*IdempotencyGuard, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &IdempotencyGuard{db: db, ttl: ttl}, nil
}

// Close releases the underlying Badger instance.
func (g *IdempotencyGuard) Close() error {
	return g.db.Close()
}

// ClaimOnce reports true the first time fingerprint is seen within the
// guard's TTL window, and false on every subsequent call for the same
// fingerprint until the entry expires. Callers use this to skip
// re-enqueuing a job that's already in flight for the same fingerprint.
func (g *IdempotencyGuard) ClaimOnce(fingerprint string) (bool, error) {
	claimed := false

	err := g.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(fingerprint))
		if err == nil {
			return nil // already claimed, claimed stays false
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		entry := badger.NewEntry([]byte(fingerprint), []byte{1}).WithTTL(g.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}
