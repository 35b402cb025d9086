// Package statestore keeps modelscout's durable working state in a single
// embedded bbolt database: the current and previous model catalogs per
// provider, scan resume cursors, and incremental-update bookkeeping.
// Artifacts (checkpoints, snapshots, deltas) live in internal/storage;
// this store holds only the state the next run needs to pick up from.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Bucket names.
var (
	bucketModelsCurrent = []byte("models_current")
	bucketModelsLast    = []byte("models_last")
	bucketScanCursors   = []byte("scan_cursors")
	bucketUpdateMeta    = []byte("update_meta")
)

// Store is the bbolt-backed state database.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the state database at path and ensures all buckets
// exist. The open blocks at most one second waiting for a file lock held by
// another process.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapPersist("mkdir", dir, err)
		}
	}

	db, err := bolt.Open(path, constants.SecureFilePermissions, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.WrapPersist("open", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketModelsCurrent, bucketModelsLast, bucketScanCursors, bucketUpdateMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WrapPersist("init", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.WrapPersist("close", s.path, err)
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Cursor returns the persisted resume offset for a provider. ok is false
// when no cursor has been saved.
func (s *Store) Cursor(provider string) (offset int64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketScanCursors).Get([]byte(provider))
		if v == nil {
			return nil
		}
		n, perr := strconv.ParseInt(string(v), 10, 64)
		if perr != nil {
			return perr
		}
		offset, ok = n, true
		return nil
	})
	if err != nil {
		return 0, false, errors.WrapPersist("cursor", s.path, err)
	}
	return offset, ok, nil
}

// SaveCursor persists the resume offset for a provider.
func (s *Store) SaveCursor(provider string, offset int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScanCursors).Put([]byte(provider), []byte(strconv.FormatInt(offset, 10)))
	})
	if err != nil {
		return errors.WrapPersist("save cursor", s.path, err)
	}
	return nil
}

// ClearCursor removes a provider's resume cursor, typically after a scan
// ran to completion.
func (s *Store) ClearCursor(provider string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScanCursors).Delete([]byte(provider))
	})
	if err != nil {
		return errors.WrapPersist("clear cursor", s.path, err)
	}
	return nil
}

// CurrentModels returns the current catalog generation for a provider, or
// nil when none has been saved.
func (s *Store) CurrentModels(provider string) ([]catalog.ModelRecord, error) {
	return s.models(bucketModelsCurrent, provider)
}

// LastModels returns the previous catalog generation for a provider, kept
// for change detection and rollback.
func (s *Store) LastModels(provider string) ([]catalog.ModelRecord, error) {
	return s.models(bucketModelsLast, provider)
}

// SaveCurrentModels writes a new catalog generation for a provider,
// rotating the existing generation into the previous slot. Rotation and
// write happen in one transaction.
func (s *Store) SaveCurrentModels(provider string, models []catalog.ModelRecord) error {
	data, err := json.Marshal(models)
	if err != nil {
		return errors.WrapPersist("encode models", s.path, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(provider)
		current := tx.Bucket(bucketModelsCurrent)

		if prev := current.Get(key); prev != nil {
			// Get returns memory only valid for the transaction; copy
			// before writing it into another bucket.
			if err := tx.Bucket(bucketModelsLast).Put(key, append([]byte(nil), prev...)); err != nil {
				return err
			}
		}
		return current.Put(key, data)
	})
	if err != nil {
		return errors.WrapPersist("save models", s.path, err)
	}
	return nil
}

// ReplaceCurrentModels overwrites the current generation without rotating,
// used when rolling back to a snapshot.
func (s *Store) ReplaceCurrentModels(provider string, models []catalog.ModelRecord) error {
	data, err := json.Marshal(models)
	if err != nil {
		return errors.WrapPersist("encode models", s.path, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketModelsCurrent).Put([]byte(provider), data)
	})
	if err != nil {
		return errors.WrapPersist("replace models", s.path, err)
	}
	return nil
}

// Providers lists every provider with a current catalog generation, sorted.
func (s *Store) Providers() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketModelsCurrent).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.WrapPersist("list providers", s.path, err)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateMeta returns the incremental-update bookkeeping for a provider, or
// nil when the provider has never been updated.
func (s *Store) UpdateMeta(provider string) (*catalog.UpdateMeta, error) {
	var meta *catalog.UpdateMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUpdateMeta).Get([]byte(provider))
		if v == nil {
			return nil
		}
		var m catalog.UpdateMeta
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		meta = &m
		return nil
	})
	if err != nil {
		return nil, errors.WrapPersist("update meta", s.path, err)
	}
	return meta, nil
}

// SaveUpdateMeta persists the incremental-update bookkeeping for a provider.
func (s *Store) SaveUpdateMeta(meta *catalog.UpdateMeta) error {
	if meta == nil || meta.Provider == "" {
		return errors.NewValidationError("provider", "", "update meta needs a provider")
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return errors.WrapPersist("encode meta", s.path, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUpdateMeta).Put([]byte(meta.Provider), data)
	})
	if err != nil {
		return errors.WrapPersist("save meta", s.path, err)
	}
	return nil
}

func (s *Store) models(bucket []byte, provider string) ([]catalog.ModelRecord, error) {
	var models []catalog.ModelRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(provider))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &models)
	})
	if err != nil {
		return nil, errors.WrapPersist("load models", s.path, err)
	}
	return models, nil
}
