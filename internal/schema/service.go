package schema

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"

	"github.com/koustreak/restdb/internal/cache"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/metrics"
)

const (
	databaseKey = "ReflectedDatabase"
)

func tableKey(name string) string { return "ReflectedTable(" + name + ")" }

// CachePrefix namespaces the cache keys of one database:
// "phpcrudapi-{driver}-{database}-{hash}-". The hash covers identity, the
// values that make two databases of the same name distinct (host, port,
// table whitelist).
func CachePrefix(driver, database string, identity ...string) string {
	sum := md5.Sum([]byte(strings.Join(identity, "\x00")))
	return "phpcrudapi-" + driver + "-" + database + "-" + hex.EncodeToString(sum[:])[:8] + "-"
}

type memo[T any] struct {
	value   T
	expires time.Time // zero never expires
}

// Service serves reflected schema snapshots. Snapshots are memoised in
// process and shared through a Cache, both for the configured TTL; a
// concurrent miss on the same key reflects only once.
//
// Snapshots are replaced, never mutated: RefreshTables and RefreshTable
// reflect again, bypassing the cache, and return the new snapshot.
type Service struct {
	reader  Reader
	cache   cache.Cache
	ttl     time.Duration
	prefix  string
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	database *memo[*Database]
	tables   map[string]memo[*Table]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTTL sets how long snapshots stay valid. 0 keeps them until refreshed.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.ttl = ttl }
}

// WithPrefix sets the cache key prefix, see CachePrefix.
func WithPrefix(prefix string) ServiceOption {
	return func(s *Service) { s.prefix = prefix }
}

func WithLogger(l *logger.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(reader Reader, c cache.Cache, opts ...ServiceOption) *Service {
	if c == nil {
		c = cache.None{}
	}
	s := &Service{
		reader: reader,
		cache:  c,
		log:    logger.Nop(),
		now:    time.Now,
		tables: make(map[string]memo[*Table]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- snapshots ---

// Database returns the current table list.
func (s *Service) Database(ctx context.Context) (*Database, error) {
	s.mu.RLock()
	m := s.database
	s.mu.RUnlock()
	if m != nil && s.fresh(m.expires) {
		return m.value, nil
	}
	return s.loadDatabase(ctx, true)
}

// RefreshTables reflects the table list again, bypassing the cache.
func (s *Service) RefreshTables(ctx context.Context) (*Database, error) {
	return s.loadDatabase(ctx, false)
}

func (s *Service) HasTable(ctx context.Context, name string) (bool, error) {
	db, err := s.Database(ctx)
	if err != nil {
		return false, err
	}
	return db.HasTable(name), nil
}

func (s *Service) TableNames(ctx context.Context) ([]string, error) {
	db, err := s.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.TableNames(), nil
}

// Table returns the named table; TableNotFound when the current table list
// does not contain it.
func (s *Service) Table(ctx context.Context, name string) (*Table, error) {
	kind, err := s.kind(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	m, ok := s.tables[name]
	s.mu.RUnlock()
	if ok && s.fresh(m.expires) {
		return m.value, nil
	}
	return s.loadTable(ctx, name, kind, true)
}

// RefreshTable reflects one table again, bypassing the cache.
func (s *Service) RefreshTable(ctx context.Context, name string) (*Table, error) {
	kind, err := s.kind(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.loadTable(ctx, name, kind, false)
}

// Forget drops the memoised table. The next Table call reads the cache.
func (s *Service) Forget(name string) {
	s.mu.Lock()
	delete(s.tables, name)
	s.mu.Unlock()
}

// Ping measures a cache round trip.
func (s *Service) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := s.cache.Get(ctx, s.prefix+databaseKey)
	return time.Since(start), err
}

func (s *Service) kind(ctx context.Context, name string) (string, error) {
	db, err := s.Database(ctx)
	if err != nil {
		return "", err
	}
	kind := db.Kind(name)
	if kind == "" {
		return "", errs.Coded(errs.CodeTableNotFound, name)
	}
	return kind, nil
}

func (s *Service) fresh(expires time.Time) bool {
	return expires.IsZero() || s.now().Before(expires)
}

func (s *Service) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

// --- loading ---

func (s *Service) loadDatabase(ctx context.Context, useCache bool) (*Database, error) {
	key := s.prefix + databaseKey
	v, err, _ := s.group.Do(flightKey(key, useCache), func() (any, error) {
		db := &Database{}
		if useCache && s.readCache(ctx, key, db) {
			return db, nil
		}
		db, err := s.reader.ReadDatabase(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveSchemaReload()
		s.log.With().Int("tables", len(db.names)).Logger().Debug("reflected table list")
		s.writeCache(ctx, key, db)
		return db, nil
	})
	if err != nil {
		return nil, err
	}

	db := v.(*Database)
	s.mu.Lock()
	s.database = &memo[*Database]{value: db, expires: s.expiry()}
	if !useCache {
		s.tables = make(map[string]memo[*Table])
	}
	s.mu.Unlock()
	return db, nil
}

func (s *Service) loadTable(ctx context.Context, name, kind string, useCache bool) (*Table, error) {
	key := s.prefix + tableKey(name)
	v, err, _ := s.group.Do(flightKey(key, useCache), func() (any, error) {
		t := &Table{}
		if useCache && s.readCache(ctx, key, t) {
			return t, nil
		}
		t, err := s.reader.ReadTable(ctx, name, kind)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveSchemaReload()
		s.log.With().Str("table", name).Int("columns", len(t.columns)).Logger().Debug("reflected table")
		s.writeCache(ctx, key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	t := v.(*Table)
	s.mu.Lock()
	s.tables[name] = memo[*Table]{value: t, expires: s.expiry()}
	s.mu.Unlock()
	return t, nil
}

func flightKey(key string, useCache bool) string {
	if useCache {
		return key
	}
	return "refresh:" + key
}

// readCache decodes the cached value of key into v. Cache failures are
// logged and treated as a miss.
func (s *Service) readCache(ctx context.Context, key string, v any) bool {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.With().Str("key", key).Err(err).Logger().Warn("schema cache read failed")
	}
	if len(data) == 0 {
		s.metrics.ObserveSchemaLookup(false)
		return false
	}
	if err := decode(data, v); err != nil {
		s.log.With().Str("key", key).Err(err).Logger().Warn("schema cache entry unreadable")
		s.metrics.ObserveSchemaLookup(false)
		return false
	}
	s.metrics.ObserveSchemaLookup(true)
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, v any) {
	data, err := encode(v)
	if err == nil {
		err = s.cache.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		s.log.With().Str("key", key).Err(err).Logger().Warn("schema cache write failed")
	}
}

// encode serialises v as gzip compressed JSON.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
