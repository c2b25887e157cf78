package rates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/bytedance/sonic"
	"go.etcd.io/bbolt"
)

// ErrNoStoredQuote is returned when no quote was ever persisted for a pair.
var ErrNoStoredQuote = errors.New("no stored quote")

var quotesBucket = []byte("quotes")

// Store persists the last good quote per pair in a bbolt file so a stale
// rate can still be served when every upstream is down.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens or creates the quote store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open quote store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(quotesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize quote store: %w", err)
	}

	return &Store{db: db}, nil
}

// Save records quote as the latest for its pair.
func (s *Store) Save(quote Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(quotesBucket).Put([]byte(quote.Pair()), data)
	})
}

// Last returns the latest stored quote for a pair.
func (s *Store) Last(asset, fiat string) (Quote, error) {
	key := pairKey(asset, fiat)

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(quotesBucket).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNoStoredQuote, key)
		}
		// bbolt values are only valid inside the transaction.
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return Quote{}, err
	}

	var quote Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return Quote{}, fmt.Errorf("failed to decode stored quote: %w", err)
	}
	return quote, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
