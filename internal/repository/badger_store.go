package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/dgraph-io/badger/v4"
	"github.com/gagliardetto/solana-go"
)

const (
	chamberKeyPrefix  = "chamber/"
	positionKeyPrefix = "position/"
)

// OpenBadger opens the embedded store at path. An empty path keeps everything in memory.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// BadgerChamberStore keeps chamber and position records in an embedded key-value store.
type BadgerChamberStore struct {
	db *badger.DB
}

func NewBadgerChamberStore(db *badger.DB) *BadgerChamberStore {
	return &BadgerChamberStore{db: db}
}

func chamberKey(address solana.PublicKey) []byte {
	return []byte(chamberKeyPrefix + address.String())
}

func positionKey(address solana.PublicKey) []byte {
	return []byte(positionKeyPrefix + address.String())
}

func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}

func (s *BadgerChamberStore) GetChamber(_ context.Context, address solana.PublicKey) (*model.Chamber, error) {
	var c model.Chamber
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, chamberKey(address), &c)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound(fmt.Sprintf("chamber %s not found", address))
	}
	return &c, nil
}

func (s *BadgerChamberStore) SaveChamber(_ context.Context, c *model.Chamber) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, chamberKey(c.Address), c)
	})
}

func (s *BadgerChamberStore) GetPosition(_ context.Context, address solana.PublicKey) (*model.UserPosition, error) {
	var pos model.UserPosition
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, positionKey(address), &pos)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound(fmt.Sprintf("user position %s not found", address))
	}
	return &pos, nil
}

// SaveTransition commits both records in one transaction.
func (s *BadgerChamberStore) SaveTransition(_ context.Context, c *model.Chamber, pos *model.UserPosition) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, chamberKey(c.Address), c); err != nil {
			return err
		}
		if pos != nil {
			return setJSON(txn, positionKey(pos.Address), pos)
		}
		return nil
	})
}

// Chambers lists every stored chamber in key order.
func (s *BadgerChamberStore) Chambers(_ context.Context) ([]*model.Chamber, error) {
	var out []*model.Chamber
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chamberKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var c model.Chamber
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}
