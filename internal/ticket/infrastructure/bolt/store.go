// Package bolt is the embedded ticket store. One file, three buckets:
// tickets by channel id, an open-ticket index by buyer id, and the
// blacklist. The buyer index is maintained inside the same bolt transaction
// as the ticket write, which makes the one-open-ticket check atomic.
package bolt

import (
	"context"
	"encoding/json"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/celstore/storefront/internal/ticket/domain"
)

const (
	bucketTickets   = "tickets"
	bucketBuyerOpen = "buyer_open"
	bucketBlacklist = "blacklist"
)

type Store struct {
	db *bolt.DB
}

func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTickets, bucketBuyerOpen, bucketBlacklist} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(_ context.Context, t *domain.Ticket, _ string, _ []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(bucketBuyerOpen))
		if existing := idx.Get([]byte(t.BuyerID)); existing != nil {
			return domain.ErrDuplicateOpenTicket
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketTickets)).Put([]byte(t.ChannelID), data); err != nil {
			return err
		}
		return idx.Put([]byte(t.BuyerID), []byte(t.ChannelID))
	})
}

func (s *Store) Update(_ context.Context, t *domain.Ticket, _ string, _ []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTickets))
		if b.Get([]byte(t.ChannelID)) == nil {
			return domain.ErrNotFound
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(t.ChannelID), data); err != nil {
			return err
		}
		idx := tx.Bucket([]byte(bucketBuyerOpen))
		if t.Status == domain.StatusOpen || t.Status == domain.StatusPaid {
			return idx.Put([]byte(t.BuyerID), []byte(t.ChannelID))
		}
		return idx.Delete([]byte(t.BuyerID))
	})
}

func (s *Store) Delete(_ context.Context, channelID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTickets))
		v := b.Get([]byte(channelID))
		if v == nil {
			return nil
		}
		var t domain.Ticket
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		idx := tx.Bucket([]byte(bucketBuyerOpen))
		if string(idx.Get([]byte(t.BuyerID))) == channelID {
			if err := idx.Delete([]byte(t.BuyerID)); err != nil {
				return err
			}
		}
		return b.Delete([]byte(channelID))
	})
}

func (s *Store) LoadActive(_ context.Context) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketTickets)).ForEach(func(_, v []byte) error {
			var t domain.Ticket
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if t.Status == domain.StatusOpen || t.Status == domain.StatusPaid {
				out = append(out, &t)
			}
			return nil
		})
	})
	return out, err
}

func (s *Store) AddBlacklist(_ context.Context, e domain.BlacklistEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketBlacklist)).Put([]byte(e.UserID), data)
	})
}

func (s *Store) RemoveBlacklist(_ context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlacklist)).Delete([]byte(userID))
	})
}

func (s *Store) IsBlacklisted(_ context.Context, userID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(bucketBlacklist)).Get([]byte(userID)) != nil
		return nil
	})
	return found, err
}

func (s *Store) Blacklist(_ context.Context) ([]domain.BlacklistEntry, error) {
	var out []domain.BlacklistEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlacklist)).ForEach(func(_, v []byte) error {
			var e domain.BlacklistEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Newest first, as staff expect when reviewing.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
