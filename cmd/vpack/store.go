package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/pflag"

	"github.com/holmberd/go-vpack/datastore"
	"github.com/holmberd/go-vpack/docstore"
	"github.com/holmberd/go-vpack/keyfactory"
)

const dialTimeout = 5 * time.Second

func storeFlags(fs *pflag.FlagSet) {
	fs.String("redis", "", "Redis address (overrides VPACK_REDIS_ADDR)")
	fs.String("namespace", "", "key namespace (overrides VPACK_NAMESPACE)")
	fs.Duration("ttl", 0, "expire the document after this duration")
}

func fetchFlags(fs *pflag.FlagSet) {
	storeFlags(fs)
	jsonFlags(fs)
}

// openCollection connects to Redis and opens the named collection of raw
// documents.
func (a *app) openCollection(
	ctx context.Context,
	fs *pflag.FlagSet,
	name string,
) (*docstore.Collection[docstore.Raw], func(), error) {
	addr, _ := fs.GetString("redis")
	if addr == "" {
		addr = a.cfg.RedisAddr
	}
	namespace, _ := fs.GetString("namespace")
	if namespace == "" {
		namespace = a.cfg.Namespace
	}
	ttl, _ := fs.GetDuration("ttl")

	keys, err := keyfactory.NewFactory(namespace)
	if err != nil {
		return nil, nil, err
	}
	rsClient := redis.NewClient(&redis.Options{Addr: addr})
	closeFn := func() { _ = rsClient.Close() }
	ds, err := datastore.NewClient(rsClient)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := ds.Ping(pingCtx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	coll, err := docstore.New[docstore.Raw](name, keys, ds, docstore.Options{
		CompressThreshold: a.cfg.CompressThreshold,
		Expiration:        ttl,
		Logger:            a.logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return coll, closeFn, nil
}

func runPut(a *app, ctx context.Context, fs *pflag.FlagSet, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		fs.Usage()
		return errUsage
	}
	data, err := a.readInput()
	if err != nil {
		return err
	}
	val, err := readValue(formatJSON, data)
	if err != nil {
		return fmt.Errorf("reading json: %w", err)
	}
	doc, ok := val.Interface().(map[string]any)
	if !ok {
		return fmt.Errorf("document must be a JSON object, got %s", val.Kind())
	}
	if len(args) == 2 {
		doc[docstore.KeyAttribute] = args[1]
	}

	coll, closeFn, err := a.openCollection(ctx, fs, args[0])
	if err != nil {
		return err
	}
	defer closeFn()
	key, err := coll.Insert(ctx, docstore.Raw(doc))
	if err != nil {
		return err
	}
	a.logger.Info("stored document", "collection", args[0], "key", key)
	_, err = fmt.Fprintln(a.stdout, key)
	return err
}

func runFetch(a *app, ctx context.Context, fs *pflag.FlagSet, args []string) error {
	if len(args) < 2 {
		fs.Usage()
		return errUsage
	}
	coll, closeFn, err := a.openCollection(ctx, fs, args[0])
	if err != nil {
		return err
	}
	defer closeFn()
	s, err := coll.Field(ctx, args[1])
	if err != nil {
		return err
	}
	if s, err = navigate(s, args[2:]); err != nil {
		return err
	}
	indent, _ := fs.GetBool("indent")
	out, err := renderJSON(s, indent)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}
