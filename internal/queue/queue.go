package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	entryPrefix = "o:"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// ErrCorrupted marks a queue entry whose checksum no longer matches its
// payload. Corrupt entries are logged, removed, and skipped during drain.
var ErrCorrupted = errors.New("queue entry corrupted")

// Options configures the durable observation queue.
type Options struct {
	// Dir is the badger segment directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the segment off disk. Test use only: it trades away
	// crash recovery.
	InMemory     bool
	MinBatchSize int
	MaxBatchSize int
	Logger       *zap.Logger
}

// Queue is a crash-safe buffer between observation producers and the
// inference pipeline. Entries are keyed by a monotonic sequence number so
// iteration order equals enqueue order. Enqueue persists before returning;
// drained entries are deleted only on Confirm, so anything unconfirmed at
// crash time is replayed after restart.
type Queue struct {
	db      *badger.DB
	logger  *zap.Logger
	minSize int
	maxSize int

	mu      sync.Mutex
	seq     uint64 // last issued sequence number
	cursor  uint64 // highest sequence handed out by Drain this process
	pending int    // durable entries not yet confirmed
	leased  int    // drained but unconfirmed entries
	flushed bool
	closed  bool
	leases  map[uint64][]uint64 // token -> sequence numbers

	notify chan struct{}
	gcStop chan struct{}
	gcDone chan struct{}
}

var _ domain.ObservationQueue = (*Queue)(nil)

// Open opens or creates the durable segment and recovers any entries left
// unconfirmed by a previous run.
func Open(opts Options) (*Queue, error) {
	if opts.MinBatchSize <= 0 {
		opts.MinBatchSize = 5
	}
	if opts.MaxBatchSize < opts.MinBatchSize {
		opts.MaxBatchSize = opts.MinBatchSize * 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Durable-before-ack depends on synchronous writes.
		bopts = bopts.WithSyncWrites(true)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open queue segment: %w", err)
	}

	q := &Queue{
		db:      db,
		logger:  opts.Logger,
		minSize: opts.MinBatchSize,
		maxSize: opts.MaxBatchSize,
		leases:  make(map[uint64][]uint64),
		notify:  make(chan struct{}, 1),
		gcStop:  make(chan struct{}),
		gcDone:  make(chan struct{}),
	}
	if err := q.recover(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if opts.InMemory {
		close(q.gcDone)
	} else {
		go q.gcLoop()
	}

	q.logger.Info("queue opened",
		zap.Int("replayable", q.pending),
		zap.Uint64("last_seq", q.seq))
	return q, nil
}

// recover scans the segment for entries persisted but never confirmed and
// restores the sequence counter past the highest of them.
func (q *Queue) recover() error {
	prefix := []byte(entryPrefix)
	return q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			seq, err := parseEntryKey(it.Item().Key())
			if err != nil {
				continue
			}
			if seq > q.seq {
				q.seq = seq
			}
			q.pending++
		}
		return nil
	})
}

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", entryPrefix, seq))
}

func parseEntryKey(key []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(entryPrefix):]), "%016d", &seq); err != nil {
		return 0, fmt.Errorf("malformed queue key %q: %w", key, err)
	}
	return seq, nil
}

// encodeEntry prepends a CRC32 checksum to the JSON payload:
// [4-byte CRC][json data].
func encodeEntry(o domain.Observation) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(data))
	copy(buf[4:], data)
	return buf, nil
}

func decodeEntry(buf []byte) (domain.Observation, error) {
	var o domain.Observation
	if len(buf) < 5 {
		return o, fmt.Errorf("%w: entry too short", ErrCorrupted)
	}
	stored := binary.BigEndian.Uint32(buf[:4])
	data := buf[4:]
	if computed := crc32.ChecksumIEEE(data); stored != computed {
		return o, fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorrupted, stored, computed)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return o, nil
}

// Enqueue persists the observation before acknowledging. A write failure is
// surfaced to the producer, which must retry. Writes are serialized so
// sequence order equals durable order; a slow durable write suspends the
// producer.
func (q *Queue) Enqueue(ctx context.Context, o domain.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := encodeEntry(o)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	seq := q.seq + 1
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(seq), val)
	})
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("%w: enqueue observation %s: %v", domain.ErrPersistence, o.ID, err)
	}
	q.seq = seq
	q.pending++
	q.mu.Unlock()
	q.poke()
	return nil
}

// Drain blocks until at least MinBatchSize observations are available, a
// flush forces a partial batch, or ctx is canceled. It returns up to
// MaxBatchSize observations in enqueue order. Single consumer only.
func (q *Queue) Drain(ctx context.Context) (*domain.Batch, error) {
	for {
		q.mu.Lock()
		avail := q.pending - q.leased
		ready := avail >= q.minSize || (q.flushed && avail >= 0) || q.closed
		if ready {
			if q.flushed && avail == 0 {
				q.flushed = false
				q.mu.Unlock()
				return &domain.Batch{}, nil
			}
			if q.closed && avail == 0 {
				q.mu.Unlock()
				return nil, domain.ErrQueueClosed
			}
			batch, err := q.collectLocked()
			q.mu.Unlock()
			return batch, err
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// collectLocked reads up to maxSize entries past the cursor and registers a
// lease for them. Caller holds q.mu.
func (q *Queue) collectLocked() (*domain.Batch, error) {
	var (
		obs     []domain.Observation
		seqs    []uint64
		corrupt []uint64
	)
	prefix := []byte(entryPrefix)
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryKey(q.cursor + 1)); it.ValidForPrefix(prefix) && len(obs) < q.maxSize; it.Next() {
			item := it.Item()
			seq, err := parseEntryKey(item.Key())
			if err != nil || seq <= q.cursor {
				continue
			}
			err = item.Value(func(val []byte) error {
				o, derr := decodeEntry(val)
				if derr != nil {
					q.logger.Error("dropping corrupt queue entry",
						zap.Uint64("seq", seq), zap.Error(derr))
					corrupt = append(corrupt, seq)
					return nil
				}
				obs = append(obs, o)
				seqs = append(seqs, seq)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %v", domain.ErrPersistence, err)
	}

	if len(corrupt) > 0 {
		q.deleteSeqs(corrupt)
		q.pending -= len(corrupt)
		for _, s := range corrupt {
			if s > q.cursor {
				q.cursor = s
			}
		}
	}
	if len(obs) == 0 {
		q.flushed = false
		return &domain.Batch{}, nil
	}

	token := seqs[0]
	q.leases[token] = seqs
	q.leased += len(seqs)
	q.cursor = seqs[len(seqs)-1]
	if q.pending-q.leased < q.minSize {
		q.flushed = false
	}
	return &domain.Batch{Token: token, Observations: obs}, nil
}

// Confirm removes the drained entries from the durable segment. Must be
// called once per drained batch after downstream processing completes.
func (q *Queue) Confirm(token uint64) error {
	q.mu.Lock()
	seqs, ok := q.leases[token]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("unknown batch token %d", token)
	}
	delete(q.leases, token)
	q.mu.Unlock()

	if err := q.deleteSeqs(seqs); err != nil {
		// Re-lease so the entries are not double-drained this process;
		// restart replays them.
		q.mu.Lock()
		q.leases[token] = seqs
		q.mu.Unlock()
		return fmt.Errorf("%w: confirm batch %d: %v", domain.ErrPersistence, token, err)
	}

	q.mu.Lock()
	q.leased -= len(seqs)
	q.pending -= len(seqs)
	q.mu.Unlock()
	return nil
}

func (q *Queue) deleteSeqs(seqs []uint64) error {
	wb := q.db.NewWriteBatch()
	defer wb.Cancel()
	for _, seq := range seqs {
		if err := wb.Delete(entryKey(seq)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Flush forces the next Drain to release a partial batch even below
// MinBatchSize. Used on shutdown.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.flushed = true
	q.mu.Unlock()
	q.poke()
}

// Pending reports durable entries not yet confirmed, drained or not.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func (q *Queue) poke() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) gcLoop() {
	defer close(q.gcDone)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.gcStop:
			return
		case <-ticker.C:
			err := q.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				q.logger.Warn("queue value log gc", zap.Error(err))
			}
		}
	}
}

// Close stops accepting writes, wakes any blocked Drain, and closes the
// segment. Unconfirmed entries stay durable for replay on next open.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	q.poke()

	select {
	case <-q.gcStop:
	default:
		close(q.gcStop)
	}
	<-q.gcDone
	return q.db.Close()
}
