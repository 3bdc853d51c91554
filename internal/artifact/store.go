// Package artifact хранит артефакты гейтов (отчеты покрытия, бейджи) по SHA коммита.
//
// Ключ записи: <sha>/<gate>/<name>. Каждая запись живет Retention (14 дней),
// после чего BadgerDB удаляет ее сам.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// DefaultRetention срок хранения артефактов
const DefaultRetention = 14 * 24 * time.Hour

// ErrNotFound возвращается, когда артефакта нет или он истек
var ErrNotFound = errors.New("artifact not found")

// Record артефакт гейта
type Record struct {
	SHA         string    `msgpack:"sha"`
	Gate        string    `msgpack:"gate"`
	Name        string    `msgpack:"name"`
	ContentType string    `msgpack:"content_type"`
	Data        []byte    `msgpack:"data"`
	CreatedAt   time.Time `msgpack:"created_at"`

	// ExpiresAt заполняется при чтении из TTL записи
	ExpiresAt time.Time `msgpack:"-"`
}

// Key возвращает ключ записи
func (r Record) Key() string {
	return Key(r.SHA, r.Gate, r.Name)
}

// Key собирает ключ <sha>/<gate>/<name>
func Key(sha, gate, name string) string {
	return sha + "/" + gate + "/" + name
}

// Options настройки хранилища
type Options struct {
	// Dir каталог базы. Игнорируется при InMemory.
	Dir       string
	InMemory  bool
	Retention time.Duration
}

// Store хранилище артефактов поверх BadgerDB
type Store struct {
	db        *badger.DB
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Open открывает хранилище
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("artifact dir is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir).WithSyncWrites(true)
	}
	bopts = bopts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger.Named("badger")})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	logger.Info("Artifact store opened",
		zap.String("dir", opts.Dir),
		zap.Bool("in_memory", opts.InMemory),
		zap.Duration("retention", retention))

	return &Store{db: db, retention: retention, logger: logger, now: time.Now}, nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	return s.db.Close()
}

// Retention возвращает срок хранения
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Put сохраняет артефакт, перезаписывая запись с тем же ключом
func (s *Store) Put(rec Record) error {
	if rec.SHA == "" || rec.Gate == "" || rec.Name == "" {
		return fmt.Errorf("artifact key is incomplete: %q", rec.Key())
	}
	if strings.Contains(rec.SHA+rec.Gate, "/") {
		return fmt.Errorf("artifact sha and gate must not contain '/': %q", rec.Key())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	val, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", rec.Key(), err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(rec.Key()), val).WithTTL(s.retention))
	})
	if err != nil {
		return fmt.Errorf("store artifact %s: %w", rec.Key(), err)
	}

	s.logger.Debug("Artifact stored", zap.String("key", rec.Key()), zap.Int("bytes", len(rec.Data)))
	return nil
}

// Get возвращает артефакт
func (s *Store) Get(sha, gate, name string) (*Record, error) {
	key := Key(sha, gate, name)
	var rec Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return decodeItem(item, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return &rec, nil
}

// List возвращает артефакты гейта для коммита. Пустой gate означает все гейты.
func (s *Store) List(sha, gate string) ([]Record, error) {
	prefix := sha + "/"
	if gate != "" {
		prefix += gate + "/"
	}

	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			if err := decodeItem(it.Item(), &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts %s: %w", prefix, err)
	}
	return records, nil
}

// Export выгружает артефакты коммита в dir/<gate>/<name> и возвращает пути файлов
func (s *Store) Export(sha, dir string) ([]string, error) {
	records, err := s.List(sha, "")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no artifacts for %s", ErrNotFound, sha)
	}

	paths := make([]string, 0, len(records))
	for _, rec := range records {
		path := filepath.Join(dir, rec.Gate, filepath.Base(rec.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("export %s: %w", rec.Key(), err)
		}
		if err := os.WriteFile(path, rec.Data, 0o644); err != nil {
			return nil, fmt.Errorf("export %s: %w", rec.Key(), err)
		}
		paths = append(paths, path)
	}

	s.logger.Info("Artifacts exported", zap.String("sha", sha), zap.String("dir", dir), zap.Int("count", len(paths)))
	return paths, nil
}

// CollectGarbage запускает GC value log, пока есть что переписывать
func (s *Store) CollectGarbage(discardRatio float64) (int, error) {
	rounds := 0
	for {
		err := s.db.RunValueLogGC(discardRatio)
		switch {
		case err == nil:
			rounds++
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return rounds, nil
		default:
			return rounds, fmt.Errorf("value log gc: %w", err)
		}
	}
}

func decodeItem(item *badger.Item, rec *Record) error {
	err := item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, rec)
	})
	if err != nil {
		return fmt.Errorf("decode artifact %s: %w", item.Key(), err)
	}
	if exp := item.ExpiresAt(); exp > 0 {
		rec.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return nil
}

// badgerLogger адаптирует zap к логгеру BadgerDB
type badgerLogger struct {
	logger *zap.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
