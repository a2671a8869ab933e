package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/storage"
)

const csvContentType = "text/csv; charset=utf-8"

// StoreConfig locates one source's dataset within the blob store.
type StoreConfig struct {
	// ObjectKey is the durable dataset object, e.g. "bat.csv".
	ObjectKey string
	// BackupPrefix namespaces timestamped pre-overwrite copies,
	// e.g. "backups/bat". Empty disables backups.
	BackupPrefix string
	// BackupRetention keeps the newest N backups after a successful
	// persist; 0 keeps everything.
	BackupRetention int
}

// Store owns the durable dataset for one source: load, dedup lookups,
// and checkpointed merge-and-persist with backup-before-overwrite.
// A Store is used by a single run at a time; cross-run exclusion is the
// caller's responsibility.
type Store struct {
	blobs  storage.BlobStore
	cfg    StoreConfig
	logger *zap.Logger
	now    func() time.Time

	records []Record
	keys    map[string]struct{}
}

// NewStore builds a Store. Load must be called before the first merge.
func NewStore(blobs storage.BlobStore, cfg StoreConfig, logger *zap.Logger) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.ObjectKey == "" {
		return nil, fmt.Errorf("dataset object key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:  blobs,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		keys:   make(map[string]struct{}),
	}, nil
}

// Load reads the durable dataset and builds the known-key set. A
// missing object is the first-run case: an empty dataset with the
// fixed schema, not an error.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.blobs.GetObject(ctx, s.cfg.ObjectKey)
	if errors.Is(err, storage.ErrNotExist) {
		s.logger.Info("no previous dataset, starting fresh",
			zap.String("object", s.cfg.ObjectKey))
		s.records = nil
		s.keys = make(map[string]struct{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", s.cfg.ObjectKey, err)
	}

	records, err := DecodeCSV(data)
	if err != nil {
		return fmt.Errorf("decode dataset %s: %w", s.cfg.ObjectKey, err)
	}
	s.records = records
	s.keys = Keys(records)
	s.logger.Info("dataset loaded",
		zap.String("object", s.cfg.ObjectKey),
		zap.Int("records", len(records)))
	return nil
}

// Known reports whether key is already in the durable dataset or was
// merged during this run.
func (s *Store) Known(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Size returns the current record count.
func (s *Store) Size() int {
	return len(s.records)
}

// Snapshot returns a copy of the in-memory records.
func (s *Store) Snapshot() []Record {
	return append([]Record(nil), s.records...)
}

// MergeAndPersist merges batch into the dataset and replaces the
// durable copy. Order of operations: backup the current durable object
// (best effort), write the merged CSV to a temporary key, copy it over
// the durable key, delete the temporary. On any failure the in-memory
// state and the durable copy are both left at their last known-good
// state, so the caller can retry the same batch at the next boundary.
func (s *Store) MergeAndPersist(ctx context.Context, batch []Record) error {
	merged := Merge(s.records, batch)
	data, err := EncodeCSV(merged)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	s.backup(ctx)

	tmpKey := s.cfg.ObjectKey + ".tmp"
	if err := s.blobs.PutObject(ctx, tmpKey, csvContentType, data); err != nil {
		return fmt.Errorf("write temp dataset: %w", err)
	}
	if err := s.blobs.CopyObject(ctx, tmpKey, s.cfg.ObjectKey); err != nil {
		return fmt.Errorf("replace dataset %s: %w", s.cfg.ObjectKey, err)
	}
	if err := s.blobs.DeleteObject(ctx, tmpKey); err != nil {
		s.logger.Warn("failed to remove temp dataset object",
			zap.String("object", tmpKey), zap.Error(err))
	}

	s.records = merged
	s.keys = Keys(merged)
	s.pruneBackups(ctx)

	s.logger.Info("dataset persisted",
		zap.String("object", s.cfg.ObjectKey),
		zap.Int("batch", len(batch)),
		zap.Int("records", len(merged)))
	return nil
}

// backup copies the durable object to a timestamped key. Absence of a
// prior copy is not an error; other failures are logged and ignored so
// a broken backup path cannot block persistence.
func (s *Store) backup(ctx context.Context) {
	if s.cfg.BackupPrefix == "" {
		return
	}
	backupKey := fmt.Sprintf("%s_%s", s.cfg.BackupPrefix, s.now().UTC().Format("20060102_150405"))
	err := s.blobs.CopyObject(ctx, s.cfg.ObjectKey, backupKey)
	switch {
	case errors.Is(err, storage.ErrNotExist):
	case err != nil:
		s.logger.Warn("dataset backup failed",
			zap.String("backup", backupKey), zap.Error(err))
	default:
		s.logger.Debug("dataset backed up", zap.String("backup", backupKey))
	}
}

// pruneBackups deletes backups beyond the configured retention. The
// timestamp suffix makes lexical order chronological.
func (s *Store) pruneBackups(ctx context.Context) {
	if s.cfg.BackupPrefix == "" || s.cfg.BackupRetention <= 0 {
		return
	}
	keys, err := s.blobs.ListObjects(ctx, s.cfg.BackupPrefix)
	if err != nil {
		s.logger.Warn("list backups failed", zap.Error(err))
		return
	}
	if len(keys) <= s.cfg.BackupRetention {
		return
	}
	sort.Strings(keys)
	for _, key := range keys[:len(keys)-s.cfg.BackupRetention] {
		if err := s.blobs.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("prune backup failed", zap.String("backup", key), zap.Error(err))
		}
	}
}
