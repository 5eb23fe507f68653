// Package docstore keeps typed document collections in Redis.
//
// A Collection encodes documents with an encoder.Codec, VelocyPack by default,
// and stores each one under keyfactory key "<namespace>:<collection>:<key>".
// Single attributes of VelocyPack documents can be read with Field without
// decoding the whole document.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holmberd/go-vpack/datastore"
	"github.com/holmberd/go-vpack/encoder"
	"github.com/holmberd/go-vpack/eventemitter"
	"github.com/holmberd/go-vpack/keyfactory"
	"github.com/holmberd/go-vpack/mapper"
	"github.com/holmberd/go-vpack/vpack"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrMissingKey is returned when a document has an empty key.
	ErrMissingKey = Error("docstore: document key must not be empty")

	// ErrCorruptDocument is returned when a stored payload cannot be unwrapped.
	ErrCorruptDocument = Error("docstore: corrupt document")
)

// maxPageSize is the largest page GetWithPagination returns at once.
const maxPageSize = 1000

// Document is implemented by types stored in a Collection.
type Document interface {
	DocumentKey() string // Unique key within the collection.
}

// Options configure a Collection.
type Options struct {
	// Codec encodes documents. Defaults to encoder.NewVPack(Mapper).
	Codec encoder.Codec

	// Mapper is used by the default codec. May be nil.
	Mapper *mapper.Mapper

	// CompressThreshold is the encoded size in bytes from which documents are
	// zstd compressed. Zero disables compression.
	CompressThreshold int

	// Expiration is the TTL of written documents. Zero means no expiry.
	Expiration time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Cursor is a page of documents from GetWithPagination. A zero Cursor value
// marks the last page.
type Cursor[T Document] struct {
	Cursor    uint64
	Documents []T
}

// Collection stores documents of type T. It is safe for concurrent use.
type Collection[T Document] struct {
	name     string
	keys     *keyfactory.Factory
	dsClient *datastore.Client
	codec    encoder.Codec
	opts     Options
	logger   *slog.Logger

	onInserted *EventTarget
	onRemoved  *EventTarget
	onFlushed  *EventTarget
}

// New creates a collection called name within the namespace of keys.
func New[T Document](
	name string,
	keys *keyfactory.Factory,
	dsClient *datastore.Client,
	opts Options,
) (*Collection[T], error) {
	if err := keyfactory.ValidateKeyFragment(name); err != nil {
		return nil, fmt.Errorf("docstore: invalid collection name: %w", err)
	}
	if keys == nil || dsClient == nil {
		return nil, errors.New("docstore: key factory and datastore client must not be nil")
	}
	codec := opts.Codec
	if codec == nil {
		codec = encoder.NewVPack(opts.Mapper)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := eventemitter.New[notification]()
	return &Collection[T]{
		name:       name,
		keys:       keys,
		dsClient:   dsClient,
		codec:      codec,
		opts:       opts,
		logger:     logger.With("collection", name),
		onInserted: newEventTarget(events, DocumentsInserted),
		onRemoved:  newEventTarget(events, DocumentsRemoved),
		onFlushed:  newEventTarget(events, NamespaceFlushed),
	}, nil
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) OnInserted() *EventTarget {
	return c.onInserted
}

func (c *Collection[T]) OnRemoved() *EventTarget {
	return c.onRemoved
}

func (c *Collection[T]) OnFlushed() *EventTarget {
	return c.onFlushed
}

func (c *Collection[T]) key(docKey string) (*keyfactory.Key, error) {
	if docKey == "" {
		return nil, ErrMissingKey
	}
	return c.keys.DocumentKey(c.name, docKey)
}

func (c *Collection[T]) encode(doc T) ([]byte, error) {
	data, err := c.codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: failed to encode document '%s': %w", doc.DocumentKey(), err)
	}
	sealed, compressed := seal(data, c.opts.CompressThreshold)
	if compressed {
		c.logger.Debug("compressed document", "key", doc.DocumentKey(), "size", len(data), "stored", len(sealed))
	}
	return sealed, nil
}

func (c *Collection[T]) decode(key string, data []byte) (T, error) {
	var doc T
	raw, err := unseal(data)
	if err != nil {
		return doc, fmt.Errorf("docstore: document '%s': %w", key, err)
	}
	if err := c.codec.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("docstore: failed to decode document '%s': %w", key, err)
	}
	return doc, nil
}

// Insert writes doc to the collection. If a document with the same key
// exists it is replaced.
func (c *Collection[T]) Insert(ctx context.Context, doc T) (string, error) {
	docKey := doc.DocumentKey()
	key, err := c.key(docKey)
	if err != nil {
		return "", err
	}
	data, err := c.encode(doc)
	if err != nil {
		return "", err
	}
	if err := c.dsClient.Put(ctx, key, data, c.opts.Expiration); err != nil {
		return "", err
	}
	c.logger.Debug("inserted documents", "count", 1)
	c.onInserted.emit(ctx, []string{docKey})
	return docKey, nil
}

// InsertBatch writes docs in one transaction.
func (c *Collection[T]) InsertBatch(ctx context.Context, docs []T) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil // No-op for empty batch.
	}
	keys := make([]*keyfactory.Key, len(docs))
	docKeys := make([]string, len(docs))
	data := make([][]byte, len(docs))
	for i, doc := range docs {
		docKey := doc.DocumentKey()
		key, err := c.key(docKey)
		if err != nil {
			return nil, err
		}
		d, err := c.encode(doc)
		if err != nil {
			return nil, err
		}
		keys[i], docKeys[i], data[i] = key, docKey, d
	}
	if err := c.dsClient.PutMulti(ctx, keys, data, c.opts.Expiration); err != nil {
		return nil, err
	}
	c.logger.Debug("inserted documents", "count", len(docs))
	c.onInserted.emit(ctx, docKeys)
	return docKeys, nil
}

// Get retrieves a document by key. datastore.ErrKeyNotFound is returned if
// the document does not exist.
func (c *Collection[T]) Get(ctx context.Context, docKey string) (T, error) {
	key, err := c.key(docKey)
	if err != nil {
		var zero T
		return zero, err
	}
	data, err := c.dsClient.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.decode(docKey, data)
}

// GetByKeys retrieves documents by key. Empty and missing keys are skipped.
func (c *Collection[T]) GetByKeys(ctx context.Context, docKeys []string) ([]T, error) {
	keys := make([]*keyfactory.Key, 0, len(docKeys))
	for _, docKey := range docKeys {
		if docKey == "" {
			continue
		}
		key, err := c.key(docKey)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return c.getMulti(ctx, keys)
}

func (c *Collection[T]) getMulti(ctx context.Context, keys []*keyfactory.Key) ([]T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	data, err := c.dsClient.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	docs := make([]T, 0, len(data))
	for i, d := range data {
		if d == nil {
			continue // Removed since the keys were read.
		}
		doc, err := c.decode(keys[i].Document(), d)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetAll retrieves every document in the collection. Keys are listed with
// SCAN, so documents written during the call may be missed.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	match, err := c.keys.CollectionMatch(c.name)
	if err != nil {
		return nil, err
	}
	keys, err := c.dsClient.ScanKeys(ctx, match)
	if err != nil {
		return nil, err
	}
	return c.getMulti(ctx, keys)
}

// GetWithPagination retrieves documents with cursor pagination. Start with
// cursor 0 and continue until the returned cursor is 0.
//   - Does not guarantee an exact number of documents per page.
//   - A given document may be returned multiple times.
//   - Documents not present for a full iteration may be returned or not.
func (c *Collection[T]) GetWithPagination(ctx context.Context, cursor uint64, limit int) (*Cursor[T], error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	match, err := c.keys.CollectionMatch(c.name)
	if err != nil {
		return nil, err
	}
	keys, next, err := c.dsClient.GetKeysWithCursor(ctx, cursor, limit, match)
	if err != nil {
		return nil, err
	}
	docs, err := c.getMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{Cursor: next, Documents: docs}, nil
}

// Exists checks whether a document exists.
func (c *Collection[T]) Exists(ctx context.Context, docKey string) (bool, error) {
	if docKey == "" {
		return false, nil // No-op for empty key.
	}
	key, err := c.key(docKey)
	if err != nil {
		return false, err
	}
	return c.dsClient.Exists(ctx, key)
}

// Remove removes a document by key. Removing a missing document is not an
// error.
func (c *Collection[T]) Remove(ctx context.Context, docKey string) error {
	return c.RemoveByKeys(ctx, []string{docKey})
}

// RemoveByKeys removes documents by key. Empty keys are skipped.
func (c *Collection[T]) RemoveByKeys(ctx context.Context, docKeys []string) error {
	keys := make([]*keyfactory.Key, 0, len(docKeys))
	removed := make([]string, 0, len(docKeys))
	for _, docKey := range docKeys {
		if docKey == "" {
			continue
		}
		key, err := c.key(docKey)
		if err != nil {
			return err
		}
		keys = append(keys, key)
		removed = append(removed, docKey)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.dsClient.Delete(ctx, keys...); err != nil {
		return err
	}
	c.logger.Debug("removed documents", "count", len(keys))
	c.onRemoved.emit(ctx, removed)
	return nil
}

// RemoveAll removes every document in the collection.
func (c *Collection[T]) RemoveAll(ctx context.Context) error {
	match, err := c.keys.CollectionMatch(c.name)
	if err != nil {
		return err
	}
	keys, err := c.dsClient.DeleteMatch(ctx, match)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = k.Document()
	}
	c.logger.Debug("removed documents", "count", len(keys))
	c.onRemoved.emit(ctx, docKeys)
	return nil
}

// Flush deletes every key in the collection's namespace, including other
// collections, and triggers NamespaceFlushed. It fails without a namespace.
func (c *Collection[T]) Flush(ctx context.Context) error {
	match, err := c.keys.NamespaceMatch()
	if err != nil {
		return fmt.Errorf("docstore: %w", err)
	}
	keys, err := c.dsClient.DeleteMatch(ctx, match)
	if err != nil {
		return err
	}
	c.logger.Debug("flushed namespace", "namespace", c.keys.Namespace(), "count", len(keys))
	c.onFlushed.emit(ctx, []string{})
	return nil
}

// Field returns the attribute at path inside a stored document. With the
// VelocyPack codec the attribute is located in the stored bytes; other codecs
// decode the document first. An empty path returns the whole document.
func (c *Collection[T]) Field(ctx context.Context, docKey string, path ...string) (vpack.Slice, error) {
	key, err := c.key(docKey)
	if err != nil {
		return vpack.Slice{}, err
	}
	data, err := c.dsClient.Get(ctx, key)
	if err != nil {
		return vpack.Slice{}, err
	}
	raw, err := unseal(data)
	if err != nil {
		return vpack.Slice{}, fmt.Errorf("docstore: document '%s': %w", docKey, err)
	}
	if _, ok := c.codec.(encoder.VPack); !ok {
		var val *vpack.Value
		if err := c.codec.Unmarshal(raw, &val); err != nil {
			return vpack.Slice{}, fmt.Errorf("docstore: failed to decode document '%s': %w", docKey, err)
		}
		if val == nil {
			val = vpack.Null()
		}
		if raw, err = vpack.Encode(val); err != nil {
			return vpack.Slice{}, err
		}
	}
	doc, err := vpack.NewSlice(raw)
	if err != nil {
		return vpack.Slice{}, fmt.Errorf("docstore: document '%s': %w", docKey, err)
	}
	return doc.GetPath(path...)
}
