package statestore

import (
	"errors"

	pebblestore "github.com/rzbill/provex/internal/storage/pebble"
)

// Pebble is a Store backed by the shared Pebble database. Keys are namespaced
// under a per-pipeline scope so multiple pipelines can share one database.
type Pebble struct {
	db    *pebblestore.DB
	scope string
}

// NewPebble returns a Store persisting under "state/{scope}/".
func NewPebble(db *pebblestore.DB, scope string) *Pebble {
	return &Pebble{db: db, scope: scope}
}

func (s *Pebble) key(key string) []byte {
	k := make([]byte, 0, 6+len(s.scope)+1+len(key))
	k = append(k, "state/"...)
	k = append(k, s.scope...)
	k = append(k, '/')
	k = append(k, key...)
	return k
}

// GetState implements Store.
func (s *Pebble) GetState(key string) (string, bool, error) {
	v, err := s.db.Get(s.key(key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(v), true, nil
}

// SetState implements Store.
func (s *Pebble) SetState(key, value string) error {
	return s.db.Set(s.key(key), []byte(value))
}
