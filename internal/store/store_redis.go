package store

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aprendeyjuega/asset-relay/config"
	"github.com/aprendeyjuega/asset-relay/internal/util"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/go-redis/redis/v8"
)

func redisStoresKey(prefix string) string {
	return fmt.Sprintf("%s:stores", prefix)
}

func redisEntriesKey(prefix, tag string) string {
	return fmt.Sprintf("%s:store:%s", prefix, tag)
}

// redisStorage keeps the set of version tags in one Redis set, and each generation's entries in a
// hash keyed by request key.
type redisStorage struct {
	client  redis.UniversalClient
	prefix  string
	loggers ldlog.Loggers
}

type redisStore struct {
	storage *redisStorage
	tag     string
}

// NewRedisStorage creates a Storage backed by Redis, so several instances can share one cache.
func NewRedisStorage(dbConfig config.RedisConfig, loggers ldlog.Loggers) (Storage, error) {
	url := dbConfig.URL.String()
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, errOpeningStorage("Redis", err)
	}
	opts := redis.UniversalOptions{
		Addrs:     []string{parsed.Addr},
		DB:        parsed.DB,
		Username:  parsed.Username,
		Password:  parsed.Password,
		TLSConfig: parsed.TLSConfig,
	}
	if dbConfig.Password != "" {
		opts.Password = dbConfig.Password
	}
	if dbConfig.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	s := &redisStorage{
		client:  redis.NewUniversalClient(&opts),
		prefix:  prefixOrDefault(dbConfig.Prefix, config.DefaultRedisPrefix),
		loggers: loggers,
	}
	s.loggers.SetPrefix("[store:redis]")
	s.loggers.Infof("Using Redis at %s with prefix %q", util.RedactURL(url), s.prefix)
	return s, nil
}

func (s *redisStorage) Kind() string { return "redis" }

func (s *redisStorage) Open(ctx context.Context, tag string) (Store, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	if err := s.client.SAdd(ctx, redisStoresKey(s.prefix), tag).Err(); err != nil {
		return nil, err
	}
	return &redisStore{storage: s, tag: tag}, nil
}

func (s *redisStorage) Tags(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, redisStoresKey(s.prefix)).Result()
}

func (s *redisStorage) Delete(ctx context.Context, tag string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, redisStoresKey(s.prefix), tag)
		pipe.Del(ctx, redisEntriesKey(s.prefix, tag))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

func (s *redisStorage) Close() error {
	return s.client.Close()
}

func (s *redisStore) Tag() string { return s.tag }

func (s *redisStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	data, err := s.storage.client.HGet(ctx, redisEntriesKey(s.storage.prefix, s.tag), key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		s.storage.loggers.Warnf(logMsgCorruptEntry, key, s.tag, err)
		return Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

// Put writes the entry only while the tag is still a member of the stores set, so that a late write
// from a superseded worker cannot recreate a purged generation.
func (s *redisStore) Put(ctx context.Context, key string, snapshot Snapshot) error {
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	storesKey := redisStoresKey(s.storage.prefix)
	return s.storage.client.Watch(ctx, func(tx *redis.Tx) error {
		isMember, err := tx.SIsMember(ctx, storesKey, s.tag).Result()
		if err != nil || !isMember {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisEntriesKey(s.storage.prefix, s.tag), key, data)
			return nil
		})
		return err
	}, storesKey)
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	n, err := s.storage.client.HLen(ctx, redisEntriesKey(s.storage.prefix, s.tag)).Result()
	return int(n), err
}
