package store

import (
	"context"
	"io"
	"strings"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Store is one generation of cached responses, identified by a version tag.
//
// Every operation is atomic for a single key. Concurrent writes to the same key are allowed, and the
// last one wins.
type Store interface {
	// Tag returns the version tag of this generation.
	Tag() string
	// Get returns the snapshot stored under key. The second return value is false if there is none.
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	// Put stores a snapshot under key, replacing any previous one.
	Put(ctx context.Context, key string, snapshot Snapshot) error
	// Len returns the number of entries in the store.
	Len(ctx context.Context) (int, error)
}

// Storage holds all generations of cached responses.
type Storage interface {
	io.Closer
	// Kind returns a short name for the backend, such as "memory" or "redis".
	Kind() string
	// Open returns the Store for a version tag, creating it if it does not exist.
	Open(ctx context.Context, tag string) (Store, error)
	// Tags returns the version tags of all existing stores, in no particular order.
	Tags(ctx context.Context) ([]string, error)
	// Delete removes an entire store. It returns false if there was no store with that tag.
	Delete(ctx context.Context, tag string) (bool, error)
}

// StorageFactory creates a Storage from the configuration.
type StorageFactory func(allConfig config.Config, loggers ldlog.Loggers) (Storage, error)

// ConfigureStorage is the default StorageFactory. It uses whichever persistent backend is enabled in the
// configuration, or in-memory storage if none is.
func ConfigureStorage(allConfig config.Config, loggers ldlog.Loggers) (Storage, error) {
	var (
		storage Storage
		err     error
	)
	switch {
	case allConfig.SQLite.Path != "":
		storage, err = NewSQLiteStorage(allConfig.SQLite, loggers)
	case allConfig.Redis.URL.IsDefined():
		storage, err = NewRedisStorage(allConfig.Redis, loggers)
	case allConfig.Consul.Host != "":
		storage, err = NewConsulStorage(allConfig.Consul, loggers)
	case allConfig.DynamoDB.Enabled:
		storage, err = NewDynamoDBStorage(context.Background(), allConfig.DynamoDB, nil, loggers)
	default:
		storage = NewMemoryStorage()
	}
	if err != nil {
		return nil, err
	}
	loggers.Infof(logMsgOpenedStorage, storage.Kind())
	return storage, nil
}

func checkTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return errEmptyTag
	}
	return nil
}

func prefixOrDefault(prefix, defaultPrefix string) string {
	if prefix == "" {
		return defaultPrefix
	}
	return prefix
}
