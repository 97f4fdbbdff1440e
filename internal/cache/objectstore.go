package cache

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/filestore"
)

// ObjectStore keeps values as objects in a filestore bucket. Each object
// holds an "expiry|payload" envelope where expiry is a unix timestamp in
// seconds, 0 meaning never.
type ObjectStore struct {
	store  filestore.Store
	bucket string
	prefix string
	now    func() time.Time
}

var _ Cache = (*ObjectStore)(nil)

// NewObjectStore returns a cache writing to bucket. Object keys are prefix
// followed by the cache key, and Clear only removes objects under prefix.
func NewObjectStore(store filestore.Store, bucket, prefix string) *ObjectStore {
	return &ObjectStore{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

func (c *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.store.GetObject(ctx, c.bucket, c.prefix+key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read cache object", err)
	}

	payload, expiry, ok := unwrapEnvelope(raw)
	if !ok {
		return nil, nil
	}
	if expiry > 0 && c.now().Unix() >= expiry {
		// Expired objects are removed lazily; a failed removal is still a miss.
		_ = c.store.RemoveObject(ctx, c.bucket, c.prefix+key)
		return nil, nil
	}
	return payload, nil
}

func (c *ObjectStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiry int64
	if ttl > 0 {
		expiry = c.now().Add(ttl).Unix()
	}
	body := wrapEnvelope(value, expiry)
	return c.store.PutObject(ctx, c.bucket, c.prefix+key, bytes.NewReader(body), int64(len(body)), "application/octet-stream")
}

func (c *ObjectStore) Clear(ctx context.Context) error {
	objects, err := c.store.ListObjects(ctx, c.bucket, filestore.ListOptions{Prefix: c.prefix})
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := c.store.RemoveObject(ctx, c.bucket, o.Key); err != nil {
			return err
		}
	}
	return nil
}

// --- envelope ---

func wrapEnvelope(payload []byte, expiry int64) []byte {
	head := strconv.FormatInt(expiry, 10)
	out := make([]byte, 0, len(head)+1+len(payload))
	out = append(out, head...)
	out = append(out, '|')
	return append(out, payload...)
}

func unwrapEnvelope(raw []byte) (payload []byte, expiry int64, ok bool) {
	i := bytes.IndexByte(raw, '|')
	if i < 0 {
		return nil, 0, false
	}
	expiry, err := strconv.ParseInt(string(raw[:i]), 10, 64)
	if err != nil {
		return nil, 0, false
	}
	return raw[i+1:], expiry, true
}
