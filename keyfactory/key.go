// Package keyfactory builds the Redis keys under which documents are stored.
//
// Key structure:
//
//	__<namespace>__:<collection>:<document key>
//
// The namespace is optional and lowercased. Collection names and document keys
// are single key fragments and keep their case.
package keyfactory

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/holmberd/go-vpack/keyfactory/internal/rediskey"
)

const (
	WildcardAnyChar            = rediskey.WildcardAnyChar   // Matches exactly one character.
	WildcardAnyString          = rediskey.WildcardAnyString // Matches zero or more characters.
	ReservedNamespaceDelimiter = "__"                       // Delimiter placed before and after each namespace.
)

func wrapNamespace(ns string) string {
	if ns == "" {
		return ""
	}
	return ReservedNamespaceDelimiter + strings.ToLower(ns) + ReservedNamespaceDelimiter
}

// GenerateRandomKey generates a random 10-character string key.
// The generated string is a valid key fragment.
func GenerateRandomKey() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	key := make([]byte, 10)
	for i := range key {
		key[i] = letters[rand.IntN(len(letters))]
	}
	return string(key)
}

// ValidateKeyFragment validates that f is a valid collection name, document
// key or namespace.
func ValidateKeyFragment(f string) error {
	if strings.HasPrefix(f, ReservedNamespaceDelimiter) {
		return fmt.Errorf(
			"keyfactory: key fragment '%s' must not start with reserved namespace delimiter '%s'",
			f,
			ReservedNamespaceDelimiter,
		)
	}
	if err := rediskey.ValidateFragment(f); err != nil {
		return fmt.Errorf("keyfactory: %w", err)
	}
	return nil
}

// Key is a fully qualified document key, or a match pattern over document keys.
type Key struct {
	namespace  string // Wrapped namespace, e.g. "__app__".
	collection string
	document   string // Empty for collection patterns.
	wildcard   rediskey.GlobWildcard
}

// Namespace returns the bare namespace, without delimiters.
func (k *Key) Namespace() string {
	return strings.TrimSuffix(strings.TrimPrefix(k.namespace, ReservedNamespaceDelimiter), ReservedNamespaceDelimiter)
}

func (k *Key) Collection() string {
	return k.collection
}

// Document returns the document key. It is empty for match patterns.
func (k *Key) Document() string {
	return k.document
}

// IsPattern reports whether the key is a glob match pattern.
func (k *Key) IsPattern() bool {
	return k.wildcard != ""
}

// RedisKey converts a key to a valid Redis key string.
func (k *Key) RedisKey() string {
	base := rediskey.Join(k.namespace, k.collection, k.document)
	if k.wildcard != "" {
		return rediskey.Pattern(base, k.wildcard)
	}
	return base
}

// String returns "<collection>/<document>". It does not include the namespace.
func (k *Key) String() string {
	if k == nil {
		return ""
	}
	if k.IsPattern() {
		return k.collection + "/" + string(k.wildcard)
	}
	return k.collection + "/" + k.document
}

// Equal returns whether two keys address the same Redis key.
func (k *Key) Equal(o *Key) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.RedisKey() == o.RedisKey()
}

// ParseRedisKey parses a document Redis key into a Key.
//
// Example:
//
//	key, _ := ParseRedisKey("__app1__:users:alice")
//	// key => *Key{namespace: "__app1__", collection: "users", document: "alice"}
func ParseRedisKey(redisKey string) (*Key, error) {
	if err := rediskey.Validate(redisKey); err != nil {
		return nil, fmt.Errorf("keyfactory: failed to parse redis key '%s': %w", redisKey, err)
	}
	segments := rediskey.Split(redisKey)
	var namespace string
	if first := segments[0]; len(first) > 2*len(ReservedNamespaceDelimiter) &&
		strings.HasPrefix(first, ReservedNamespaceDelimiter) &&
		strings.HasSuffix(first, ReservedNamespaceDelimiter) {
		namespace = first
		segments = segments[1:]
	}
	if len(segments) != 2 {
		return nil, fmt.Errorf("keyfactory: redis key '%s' is not a document key", redisKey)
	}
	for _, s := range segments {
		if err := ValidateKeyFragment(s); err != nil {
			return nil, fmt.Errorf("keyfactory: failed to parse redis key '%s': %w", redisKey, err)
		}
	}
	return &Key{namespace: namespace, collection: segments[0], document: segments[1]}, nil
}

// Factory builds keys within a fixed namespace. It is safe for concurrent use.
type Factory struct {
	namespace string
}

// NewFactory returns a Factory for namespace, which may be empty.
func NewFactory(namespace string) (*Factory, error) {
	if namespace != "" {
		if err := ValidateKeyFragment(namespace); err != nil {
			return nil, err
		}
	}
	return &Factory{namespace: wrapNamespace(namespace)}, nil
}

// Namespace returns the bare namespace.
func (f *Factory) Namespace() string {
	return (&Key{namespace: f.namespace}).Namespace()
}

// DocumentKey returns the key of document in collection.
func (f *Factory) DocumentKey(collection, document string) (*Key, error) {
	if err := ValidateKeyFragment(collection); err != nil {
		return nil, err
	}
	if err := ValidateKeyFragment(document); err != nil {
		return nil, err
	}
	return &Key{namespace: f.namespace, collection: collection, document: document}, nil
}

// DocumentKeys is a batch version of DocumentKey.
func (f *Factory) DocumentKeys(collection string, documents []string) ([]*Key, error) {
	keys := make([]*Key, len(documents))
	for i, d := range documents {
		k, err := f.DocumentKey(collection, d)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// CollectionMatch returns a pattern matching every document in collection.
func (f *Factory) CollectionMatch(collection string) (*Key, error) {
	if err := ValidateKeyFragment(collection); err != nil {
		return nil, err
	}
	return &Key{namespace: f.namespace, collection: collection, wildcard: WildcardAnyString}, nil
}

// NamespaceMatch returns a pattern matching every key in the namespace. It
// fails for the empty namespace, where it would match the whole database.
func (f *Factory) NamespaceMatch() (*Key, error) {
	if f.namespace == "" {
		return nil, fmt.Errorf("keyfactory: namespace match requires a namespace")
	}
	return &Key{namespace: f.namespace, wildcard: WildcardAnyString}, nil
}
