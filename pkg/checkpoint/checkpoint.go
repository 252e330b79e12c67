// Package checkpoint persists the shortcut store between pipeline steps in a
// Badger database so an interrupted run can resume.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
	"github.com/golang/snappy"

	"map_shortcuts/pkg/pipeline"
	"map_shortcuts/pkg/shortcut"
)

// DefaultChunkSize bounds a single stored value.
const DefaultChunkSize = 16 << 20

var headKey = []byte("head")

// head points at the latest complete snapshot.
type head struct {
	Generation uint64                `json:"generation"`
	Chunks     int                   `json:"chunks"`
	Rows       int                   `json:"rows"`
	Steps      []pipeline.StepRecord `json:"steps"`
	SavedAt    time.Time             `json:"saved_at"`
}

func chunkPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("snap/%016x/", gen))
}

func chunkKey(gen uint64, i int) []byte {
	return append(chunkPrefix(gen), fmt.Sprintf("%08x", i)...)
}

// Store is a Badger-backed pipeline.Checkpointer.
type Store struct {
	db        *badger.DB
	chunkSize int
	logger    *log.Logger
}

// badgerLogger routes Badger's internal logging through the run logger.
type badgerLogger struct{ l *log.Logger }

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Errorf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warnf(f, v...) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debugf(f, v...) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Debugf(f, v...) }

// Open opens or creates a checkpoint database in dir.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.WithPrefix("badger")}).
		WithNumVersionsToKeep(1).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	return &Store{db: db, chunkSize: DefaultChunkSize, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) readHead(txn *badger.Txn) (head, bool, error) {
	var h head
	item, err := txn.Get(headKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return h, false, nil
	}
	if err != nil {
		return h, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &h)
	})
	return h, err == nil, err
}

// Save writes a new snapshot generation, then switches the head to it and
// drops the previous generation. A crash mid-save leaves the old head valid.
func (s *Store) Save(ctx context.Context, rows []shortcut.Shortcut, steps []pipeline.StepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var prev head
	var hasPrev bool
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		prev, hasPrev, err = s.readHead(txn)
		return err
	}); err != nil {
		return fmt.Errorf("read head: %w", err)
	}

	var buf bytes.Buffer
	if err := shortcut.Encode(&buf, shortcut.FromShortcuts(rows)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data := buf.Bytes()

	gen := prev.Generation + 1
	wb := s.db.NewWriteBatch()
	chunks := 0
	for off := 0; off < len(data) || chunks == 0; off += s.chunkSize {
		end := min(off+s.chunkSize, len(data))
		if err := wb.Set(chunkKey(gen, chunks), snappy.Encode(nil, data[off:end])); err != nil {
			wb.Cancel()
			return fmt.Errorf("write chunk %d: %w", chunks, err)
		}
		chunks++
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	h := head{Generation: gen, Chunks: chunks, Rows: len(rows), Steps: steps, SavedAt: time.Now().UTC()}
	val, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal head: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headKey, val)
	}); err != nil {
		return fmt.Errorf("write head: %w", err)
	}

	if hasPrev {
		if err := s.db.DropPrefix(chunkPrefix(prev.Generation)); err != nil {
			s.logger.Warn("could not drop old checkpoint generation", "generation", prev.Generation, "err", err)
		}
	}
	s.logger.Debug("checkpoint saved", "generation", gen, "rows", len(rows), "bytes", len(data), "steps", len(steps))
	return nil
}

// Load returns the latest snapshot. ok is false when nothing was saved yet.
func (s *Store) Load(ctx context.Context) ([]shortcut.Shortcut, []pipeline.StepRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}

	var (
		h    head
		ok   bool
		data []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		h, ok, err = s.readHead(txn)
		if err != nil || !ok {
			return err
		}
		for i := 0; i < h.Chunks; i++ {
			item, err := txn.Get(chunkKey(h.Generation, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if err := item.Value(func(val []byte) error {
				raw, err := snappy.Decode(nil, val)
				if err != nil {
					return err
				}
				data = append(data, raw...)
				return nil
			}); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, fmt.Errorf("read checkpoint: %w", err)
	}
	if !ok {
		return nil, nil, false, nil
	}

	t, err := shortcut.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if t.Len() != h.Rows {
		return nil, nil, false, fmt.Errorf("snapshot has %d rows, head says %d", t.Len(), h.Rows)
	}
	return t.Shortcuts(), h.Steps, true, nil
}

// Clear removes every checkpoint.
func (s *Store) Clear() error {
	return s.db.DropAll()
}
