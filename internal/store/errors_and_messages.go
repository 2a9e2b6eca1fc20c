package store

import (
	"errors"
	"fmt"
	"strings"

	consul "github.com/hashicorp/consul/api"
)

const (
	logMsgOpenedStorage = "Using %s storage for cached assets"
	logMsgDeletedStore  = "Deleted cache store %q (%d entries)"
	logMsgCorruptEntry  = "Discarding unreadable cache entry %q in store %q: %s"
)

var (
	errEmptyTag       = errors.New("cache store tag must not be empty")
	errStorageClosed  = errors.New("storage has been closed")
	errSQLitePathless = errors.New("SQLite storage path is required")
)

func errDecodingSnapshot(err error) error {
	return fmt.Errorf("unable to decode cached response: %w", err)
}

func errEncodingSnapshot(err error) error {
	return fmt.Errorf("unable to encode cached response: %w", err)
}

func errReadingResponseBody(err error) error {
	return fmt.Errorf("unable to read response body: %w", err)
}

func errOpeningStorage(kind string, err error) error {
	return fmt.Errorf("unable to open %s storage: %w", kind, err)
}

func errValueTooLarge(key string, size int) error {
	return fmt.Errorf("cache entry %q is %d bytes, which exceeds the storage value size limit", key, size)
}

func errUnprocessedItems(count int) error {
	return fmt.Errorf("DynamoDB left %d batch write requests unprocessed after retrying", count)
}

func errTxnRejected(resp *consul.KVTxnResponse) error {
	var msgs []string
	if resp != nil {
		for _, e := range resp.Errors {
			msgs = append(msgs, e.What)
		}
	}
	return fmt.Errorf("Consul transaction was rejected: %s", strings.Join(msgs, "; "))
}
