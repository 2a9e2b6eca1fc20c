package store

import (
	"context"
	"net/url"
	"strings"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	consul "github.com/hashicorp/consul/api"
)

// Consul rejects values larger than this.
const consulMaxValueSize = 512 * 1024

// consulStorage keeps one marker key per version tag under <prefix>/stores/, and each generation's
// entries under <prefix>/entries/<tag>/, with request keys path-escaped.
type consulStorage struct {
	client  *consul.Client
	prefix  string
	loggers ldlog.Loggers
}

type consulStore struct {
	storage *consulStorage
	tag     string
}

// NewConsulStorage creates a Storage backed by the Consul key-value store.
func NewConsulStorage(dbConfig config.ConsulConfig, loggers ldlog.Loggers) (Storage, error) {
	consulConfig := consul.DefaultConfig()
	consulConfig.Address = dbConfig.Host
	if dbConfig.Token != "" {
		consulConfig.Token = dbConfig.Token
	}
	client, err := consul.NewClient(consulConfig)
	if err != nil {
		return nil, errOpeningStorage("Consul", err)
	}
	s := &consulStorage{
		client:  client,
		prefix:  prefixOrDefault(dbConfig.Prefix, config.DefaultConsulPrefix),
		loggers: loggers,
	}
	s.loggers.SetPrefix("[store:consul]")
	s.loggers.Infof("Using Consul at %s with prefix %q", dbConfig.Host, s.prefix)
	return s, nil
}

func (s *consulStorage) markerKey(tag string) string {
	return s.prefix + "/stores/" + url.PathEscape(tag)
}

func (s *consulStorage) entriesPrefix(tag string) string {
	return s.prefix + "/entries/" + url.PathEscape(tag) + "/"
}

func (s *consulStorage) Kind() string { return "consul" }

func (s *consulStorage) Open(ctx context.Context, tag string) (Store, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	kv := s.client.KV()
	pair := &consul.KVPair{Key: s.markerKey(tag), Value: []byte{}}
	if _, err := kv.Put(pair, (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return nil, err
	}
	return &consulStore{storage: s, tag: tag}, nil
}

func (s *consulStorage) Tags(ctx context.Context) ([]string, error) {
	markersPrefix := s.prefix + "/stores/"
	keys, _, err := s.client.KV().Keys(markersPrefix, "", (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		tag, err := url.PathUnescape(strings.TrimPrefix(k, markersPrefix))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *consulStorage) Delete(ctx context.Context, tag string) (bool, error) {
	kv := s.client.KV()
	pair, _, err := kv.Get(s.markerKey(tag), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, err
	}
	ops := consul.KVTxnOps{
		&consul.KVTxnOp{Verb: consul.KVDelete, Key: s.markerKey(tag)},
		&consul.KVTxnOp{Verb: consul.KVDeleteTree, Key: s.entriesPrefix(tag)},
	}
	ok, resp, _, err := kv.Txn(ops, (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errTxnRejected(resp)
	}
	return pair != nil, nil
}

func (s *consulStorage) Close() error {
	return nil
}

func (s *consulStore) Tag() string { return s.tag }

func (s *consulStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	pair, _, err := s.storage.client.KV().Get(s.storage.entriesPrefix(s.tag)+url.PathEscape(key),
		(&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return Snapshot{}, false, err
	}
	if pair == nil {
		return Snapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(pair.Value)
	if err != nil {
		s.storage.loggers.Warnf(logMsgCorruptEntry, key, s.tag, err)
		return Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

// Put checks the marker key in the same transaction as the write, so that a late write from a
// superseded worker cannot recreate a purged generation.
func (s *consulStore) Put(ctx context.Context, key string, snapshot Snapshot) error {
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	if len(data) > consulMaxValueSize {
		return errValueTooLarge(key, len(data))
	}
	ops := consul.KVTxnOps{
		&consul.KVTxnOp{Verb: consul.KVGet, Key: s.storage.markerKey(s.tag)},
		&consul.KVTxnOp{Verb: consul.KVSet, Key: s.storage.entriesPrefix(s.tag) + url.PathEscape(key), Value: data},
	}
	ok, resp, _, err := s.storage.client.KV().Txn(ops, (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return err
	}
	if !ok && !markerMissing(resp) {
		return errTxnRejected(resp)
	}
	return nil
}

func (s *consulStore) Len(ctx context.Context) (int, error) {
	keys, _, err := s.storage.client.KV().Keys(s.storage.entriesPrefix(s.tag), "",
		(&consul.QueryOptions{}).WithContext(ctx))
	return len(keys), err
}

// A KVGet of a missing key makes the whole transaction fail with a "doesn't exist" error for that op.
func markerMissing(resp *consul.KVTxnResponse) bool {
	if resp == nil {
		return false
	}
	for _, e := range resp.Errors {
		if strings.Contains(e.What, "doesn't exist") {
			return true
		}
	}
	return false
}
