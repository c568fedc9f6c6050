// Package trust pins management server certificates by SHA-1 fingerprint. Known
// fingerprints live in a JSON file keyed by "host:port"; unknown or changed
// fingerprints must be approved before they are stored.
package trust

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// DefaultFile is the trust record file used when none is configured.
const DefaultFile = "fingerprints.json"

// Store reads and writes the trust record file.
type Store struct {
	path   string
	lock   *rwLock
	logger zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.lock.timeout = d
		}
	}
}

// WithLogger sets the logger for store operations.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore opens the trust record file at path, creating it as an empty object if
// it does not exist.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidStore.Msg("trust store path is empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, ErrInvalidStore.Msg("trust store path is a directory: " + path)
	}
	s := &Store{
		path:   path,
		lock:   newRWLock(path+".lock", DefaultLockTimeout),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensure(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the trust record file path.
func (s *Store) Path() string {
	return s.path
}

// Key returns the record key for a server.
func Key(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

func (s *Store) ensure(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return ErrStoreIO.MsgErr("failed to create trust store directory", err)
		}
	}
	unlock, err := s.lock.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	s.logger.Debug().Str("path", s.path).Msg("creating trust store")
	return s.write(types.NewDocument())
}

// Get returns the stored fingerprint for host:port. ok is false when none is stored.
func (s *Store) Get(ctx context.Context, host string, port int) (fingerprint string, ok bool, err error) {
	unlock, err := s.lock.rlock(ctx)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	return lookup(doc, Key(host, port))
}

// Save stores fingerprint for host:port. It reports whether the file was written,
// which is false when the stored value already matches case-insensitively.
func (s *Store) Save(ctx context.Context, host string, port int, fingerprint string) (bool, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return false, ErrInvalidStore.Msg("empty fingerprint")
	}
	unlock, err := s.lock.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	key := Key(host, port)
	current, ok, err := lookup(doc, key)
	if err != nil {
		return false, err
	}
	if ok && strings.EqualFold(current, fingerprint) {
		return false, nil
	}
	doc, err = doc.With(key, fingerprint)
	if err != nil {
		return false, ErrStoreIO.MsgErr("failed to update trust store", err)
	}
	if err := s.write(doc); err != nil {
		return false, err
	}
	s.logger.Debug().Str("server", key).Msg("saved server fingerprint")
	return true, nil
}

// Delete removes the record for host:port and reports whether one existed.
func (s *Store) Delete(ctx context.Context, host string, port int) (bool, error) {
	unlock, err := s.lock.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	key := Key(host, port)
	if !doc.Has(key) {
		return false, nil
	}
	if err := s.write(doc.Without(key)); err != nil {
		return false, err
	}
	s.logger.Debug().Str("server", key).Msg("deleted server fingerprint")
	return true, nil
}

// Check reports whether a fingerprint is stored for host:port and equals live.
func (s *Store) Check(ctx context.Context, host string, port int, live string) (bool, error) {
	stored, ok, err := s.Get(ctx, host, port)
	if err != nil || !ok {
		return false, err
	}
	return strings.EqualFold(stored, strings.TrimSpace(live)), nil
}

// All returns every stored record in file order.
func (s *Store) All(ctx context.Context) (map[string]string, []string, error) {
	unlock, err := s.lock.rlock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return nil, nil, err
	}
	keys := doc.Keys()
	records := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := lookup(doc, k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			records[k] = v
		}
	}
	return records, keys, nil
}

func lookup(doc types.Document, key string) (string, bool, error) {
	v, err := doc.GetString(key)
	switch {
	case errors.Is(err, types.ErrFieldMissing):
		return "", false, nil
	case err != nil:
		return "", false, ErrCorruptFile.Msg("fingerprint for " + key + " is not a string")
	case v.IsNil():
		return "", false, nil
	}
	return v.String(), true, nil
}

func (s *Store) read() (types.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.NewDocument(), nil
	}
	if err != nil {
		return types.Document{}, ErrStoreIO.MsgErr("failed to read trust store", err)
	}
	doc, err := types.ParseDocument(data)
	if err != nil {
		return types.Document{}, ErrCorruptFile.MsgErr("failed to parse "+s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically with doc.
func (s *Store) write(doc types.Document) error {
	data := gjson.Get(doc.String(), "@pretty").Raw
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return ErrStoreIO.MsgErr("failed to write trust store", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return ErrStoreIO.MsgErr("failed to write trust store", err)
	}
	if err := tmp.Close(); err != nil {
		return ErrStoreIO.MsgErr("failed to write trust store", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return ErrStoreIO.MsgErr("failed to write trust store", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return ErrStoreIO.MsgErr("failed to write trust store", err)
	}
	return nil
}
