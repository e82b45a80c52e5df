package badger

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Entity values are serialized as JSON. JSON is fast enough for metadata
// records of this size and keeps the database inspectable with standard
// tooling when debugging.

func encodeValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return data, nil
}

func decodeValue(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}

// getValue reads the item at key within txn and decodes it into v.
// Returns badger.ErrKeyNotFound unchanged when the key does not exist so
// callers can translate it into the appropriate domain error.
func getValue(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(data []byte) error {
		return decodeValue(data, v)
	})
}

// setValue encodes v and writes it at key within txn.
func setValue(txn *badger.Txn, key []byte, v any) error {
	data, err := encodeValue(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// getBytes reads the raw value at key within txn.
func getBytes(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// keyExists reports whether key is present within txn.
func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
