// Package history persists criteria snapshots and eligibility records
// in an embedded BadgerDB so the differ and timeline commands can work
// across runs without any external database.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// Key layout. Criteria keys sort by capture time within a program;
// eligibility keys sort by epoch within a validator so reverse prefix
// iteration yields newest-first without a secondary index.
//
//	criteria/<program>/<unix-nanos be64>
//	eligibility/<vote_pubkey>/<epoch be64>/<program>/<unix-nanos be64>
//	meta/max_epoch
const (
	criteriaPrefix    = "criteria/"
	eligibilityPrefix = "eligibility/"
	maxEpochKey       = "meta/max_epoch"
)

// Store wraps one Badger database handle. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a persistent store at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create history directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	logrus.WithField("path", path).Debug("History store opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests and --no-persist runs
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// PutCriteria appends a criteria snapshot for its program
func (s *Store) PutCriteria(set *model.CriteriaSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode criteria set: %w", err)
	}
	key := criteriaKey(set.Program, time.Now().UTC())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
}

// LatestCriteria returns the most recent criteria snapshot for a
// program, or (nil, nil) when none has been stored.
func (s *Store) LatestCriteria(program types.ProgramID) (*model.CriteriaSet, error) {
	var out *model.CriteriaSet
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(criteriaPrefix + string(program) + "/")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix range
		it.Seek(append(prefix, 0xff))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var set model.CriteriaSet
			if err := json.Unmarshal(val, &set); err != nil {
				return fmt.Errorf("decode criteria set: %w", err)
			}
			out = &set
			return nil
		})
	})
	return out, err
}

// AppendRecord stores one eligibility record and advances the epoch
// high-water mark.
func (s *Store) AppendRecord(record *model.EligibilityRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode eligibility record: %w", err)
	}
	key := eligibilityKey(record)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, payload); err != nil {
			return err
		}
		return bumpMaxEpoch(txn, record.Epoch)
	})
}

// Records returns a validator's eligibility history, newest epoch
// first. A zero program matches every program; limit <= 0 means no
// limit.
func (s *Store) Records(votePubkey string, program types.ProgramID, limit int) ([]model.EligibilityRecord, error) {
	var out []model.EligibilityRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(eligibilityPrefix + votePubkey + "/")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
			var record model.EligibilityRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("decode eligibility record: %w", err)
			}
			if program != "" && record.Program != program {
				continue
			}
			out = append(out, record)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

// NextEpochHint returns one past the highest epoch ever recorded,
// starting at 1 for an empty store.
func (s *Store) NextEpochHint() (uint64, error) {
	var max uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(maxEpochKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				max = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func criteriaKey(program types.ProgramID, at time.Time) []byte {
	key := make([]byte, 0, len(criteriaPrefix)+len(program)+9)
	key = append(key, criteriaPrefix...)
	key = append(key, program...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, uint64(at.UnixNano()))
}

func eligibilityKey(record *model.EligibilityRecord) []byte {
	key := make([]byte, 0, len(eligibilityPrefix)+len(record.VotePubkey)+len(record.Program)+19)
	key = append(key, eligibilityPrefix...)
	key = append(key, record.VotePubkey...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, record.Epoch)
	key = append(key, '/')
	key = append(key, record.Program...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, uint64(record.CapturedAt.UnixNano()))
}

func bumpMaxEpoch(txn *badger.Txn, epoch uint64) error {
	current := uint64(0)
	item, err := txn.Get([]byte(maxEpochKey))
	if err == nil {
		err = item.Value(func(val []byte) error {
			if len(val) == 8 {
				current = binary.BigEndian.Uint64(val)
			}
			return nil
		})
		if err != nil {
			return err
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}
	if epoch <= current {
		return nil
	}
	return txn.Set([]byte(maxEpochKey), binary.BigEndian.AppendUint64(nil, epoch))
}
