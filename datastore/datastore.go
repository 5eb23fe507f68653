// Package datastore stores encoded documents in Redis under keyfactory keys.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unsafe"

	"github.com/go-redis/redis/v8"
	"github.com/holmberd/go-vpack/keyfactory"
)

var (
	ErrKeyNotFound = errors.New("datastore: key not found")
)

// maxScanCount is the largest COUNT hint passed to SCAN.
const maxScanCount = 1000

// Client represents a datastore client. It is safe for concurrent use.
type Client struct {
	rsClient *redis.Client
}

// NewClient creates a new instance of a Client.
func NewClient(rsClient *redis.Client) (*Client, error) {
	if rsClient == nil {
		return nil, errors.New("datastore: redis client must not be nil")
	}
	return &Client{
		rsClient: rsClient,
	}, nil
}

// RedisClient returns the underlying Redis client.
//
// NOTE: This is an escape hatch and should not be abused.
func (c *Client) RedisClient() *redis.Client {
	return c.rsClient
}

// Ping checks the connection to Redis.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rsClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("datastore: %w", err)
	}
	return nil
}

// Put writes the data with the key to the store, replacing any existing
// value. A zero expiration means the key does not expire.
func (c *Client) Put(
	ctx context.Context,
	key *keyfactory.Key,
	data []byte,
	expiration time.Duration,
) error {
	if key == nil {
		return nil // No-op for empty key.
	}
	if key.IsPattern() {
		return fmt.Errorf("datastore: cannot write to match pattern '%s'", key.RedisKey())
	}
	if err := c.rsClient.Set(ctx, key.RedisKey(), data, expiration).Err(); err != nil {
		return fmt.Errorf("datastore: failed to write key '%s': %w", key, err)
	}
	return nil
}

// PutMulti is a batch version of Put. The writes are sent in one
// transactional pipeline.
func (c *Client) PutMulti(
	ctx context.Context,
	keys []*keyfactory.Key,
	data [][]byte,
	expiration time.Duration,
) error {
	if len(keys) != len(data) {
		return errors.New("datastore: key and data slices have different length")
	}
	if len(keys) == 0 {
		return nil // No-op for empty batch.
	}
	for _, key := range keys {
		if key == nil || key.IsPattern() {
			return fmt.Errorf("datastore: invalid key '%s' in batch", key)
		}
	}
	_, err := c.rsClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			pipe.Set(ctx, key.RedisKey(), data[i], expiration)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("datastore: failed to write keys: %w", err)
	}
	return nil
}

// Get retrieves the data associated with the key from the store.
// ErrKeyNotFound is returned if the key is not found in the store.
func (c *Client) Get(ctx context.Context, key *keyfactory.Key) ([]byte, error) {
	if key == nil {
		return nil, ErrKeyNotFound
	}
	data, err := c.rsClient.Get(ctx, key.RedisKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: '%s'", ErrKeyNotFound, key)
		}
		return nil, fmt.Errorf("datastore: %w", err)
	}
	return data, nil
}

// GetMulti retrieves data by their associated keys from the store. The result
// is aligned with keys; the entry of a key that is not found is nil.
//
// The returned slices share memory with immutable strings and must not be
// modified.
func (c *Client) GetMulti(ctx context.Context, keys []*keyfactory.Key) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil // No-op for empty slice of keys.
	}
	rsKeys := make([]string, len(keys))
	for i, key := range keys {
		rsKeys[i] = key.RedisKey()
	}
	results, err := c.rsClient.MGet(ctx, rsKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("datastore: failed to retrieve keys: %w", err)
	}
	out := make([][]byte, len(results))
	for i, res := range results {
		if res == nil {
			continue
		}
		s, ok := res.(string)
		if !ok {
			// MGET replies with bulk strings or nil only.
			panic(fmt.Sprintf("datastore: unexpected type %T in redis MGET result", res))
		}
		out[i] = unsafe.Slice(unsafe.StringData(s), len(s))
	}
	return out, nil
}

// Delete deletes the provided keys from the store.
func (c *Client) Delete(ctx context.Context, keys ...*keyfactory.Key) error {
	if len(keys) == 0 {
		return nil // No-op for empty keys.
	}
	rsKeys := make([]string, len(keys))
	for i, key := range keys {
		rsKeys[i] = key.RedisKey()
	}
	if err := c.rsClient.Del(ctx, rsKeys...).Err(); err != nil {
		return fmt.Errorf("datastore: failed to delete keys: %w", err)
	}
	return nil
}

// DeleteMatch deletes all keys matching the pattern and returns them. Keys are
// found with SCAN, so keys written during the call may survive.
func (c *Client) DeleteMatch(ctx context.Context, keyMatch *keyfactory.Key) ([]*keyfactory.Key, error) {
	if keyMatch == nil {
		return nil, nil // No-op for empty key.
	}
	keys, err := c.ScanKeys(ctx, keyMatch)
	if err != nil {
		return nil, err
	}
	for batch := range slices.Chunk(keys, maxScanCount) {
		if err := c.Delete(ctx, batch...); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// GetKeysWithCursor retrieves matching keys using cursor pagination.
//   - Does not guarantee an exact number of keys returned per page.
//   - A given key may be returned multiple times.
//   - Keys that were not constantly present during a full iteration may be returned or not.
func (c *Client) GetKeysWithCursor(
	ctx context.Context,
	cursor uint64,
	limit int,
	keyMatch *keyfactory.Key,
) (keys []*keyfactory.Key, nextCursor uint64, err error) {
	if limit <= 0 || limit > maxScanCount {
		limit = maxScanCount
	}
	rsKeys, nextCursor, err := c.rsClient.Scan(ctx, cursor, keyMatch.RedisKey(), int64(limit)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("datastore: failed scanning redis for keys: %w", err)
	}
	keys, err = parseKeys(rsKeys)
	if err != nil {
		return nil, 0, err
	}
	return keys, nextCursor, nil
}

// ScanKeys retrieves all matching keys without blocking the server.
// Keys added or removed during iteration may be missed.
func (c *Client) ScanKeys(ctx context.Context, keyMatch *keyfactory.Key) ([]*keyfactory.Key, error) {
	var (
		cursor uint64
		keys   []*keyfactory.Key
		seen   = make(map[string]struct{})
	)
	for {
		page, next, err := c.GetKeysWithCursor(ctx, cursor, maxScanCount, keyMatch)
		if err != nil {
			return nil, err
		}
		for _, k := range page {
			if _, dup := seen[k.RedisKey()]; dup {
				continue
			}
			seen[k.RedisKey()] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// GetKeys retrieves all matching keys.
//
// NOTE: This is a blocking operation.
func (c *Client) GetKeys(ctx context.Context, keyMatch *keyfactory.Key) ([]*keyfactory.Key, error) {
	rsKeys, err := c.rsClient.Keys(ctx, keyMatch.RedisKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("datastore: failed to retrieve keys from redis: %w", err)
	}
	return parseKeys(rsKeys)
}

// Exists checks whether the key exists in the store.
func (c *Client) Exists(ctx context.Context, key *keyfactory.Key) (bool, error) {
	if key == nil {
		return false, nil // No-op for empty key.
	}
	n, err := c.rsClient.Exists(ctx, key.RedisKey()).Result()
	if err != nil {
		return false, fmt.Errorf("datastore: %w", err)
	}
	return n > 0, nil
}

func parseKeys(rsKeys []string) ([]*keyfactory.Key, error) {
	keys := make([]*keyfactory.Key, len(rsKeys))
	for i, rsKey := range rsKeys {
		key, err := keyfactory.ParseRedisKey(rsKey)
		if err != nil {
			return nil, fmt.Errorf("datastore: %w", err)
		}
		keys[i] = key
	}
	return keys, nil
}

