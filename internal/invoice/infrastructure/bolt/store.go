// Package bolt is the embedded transaction log. The invoice counter lives
// in its own bucket as a single {date, sequence} record, mirroring the
// postgres counter row; reading, resetting on day rollover and incrementing
// all happen inside one bolt update so numbering stays gap-free.
package bolt

import (
	"context"
	"encoding/json"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/celstore/storefront/internal/invoice/domain"
)

const (
	bucketTransactions = "transactions"
	bucketCounter      = "invoice_counter"
	counterKey         = "current"
)

type counter struct {
	Date     string `json:"date"`
	Sequence int    `json:"sequence"`
}

type Store struct {
	db *bolt.DB
}

func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTransactions, bucketCounter} {
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

func (s *Store) Append(_ context.Context, day string, build func(seq int) (domain.Transaction, []byte)) (domain.Transaction, error) {
	var out domain.Transaction
	err := s.db.Update(func(tx *bolt.Tx) error {
		cb := tx.Bucket([]byte(bucketCounter))

		var c counter
		if v := cb.Get([]byte(counterKey)); v != nil {
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
		}
		if c.Date != day {
			c = counter{Date: day, Sequence: 0}
		}
		c.Sequence++

		cData, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := cb.Put([]byte(counterKey), cData); err != nil {
			return err
		}

		t, _ := build(c.Sequence)
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		out = t
		return tx.Bucket([]byte(bucketTransactions)).Put([]byte(t.Invoice), data)
	})
	return out, err
}

func (s *Store) ByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Transaction, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Transaction
	for _, t := range all {
		if t.BuyerID == buyerID {
			out = append(out, t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) All(_ context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketTransactions)).ForEach(func(_, v []byte) error {
			var t domain.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
