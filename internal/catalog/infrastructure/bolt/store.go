// Package bolt stores the catalog in a single-file embedded database. It is
// the zero-dependency deployment mode: same contract as the postgres
// repository, no external server.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/celstore/storefront/internal/catalog/domain"
)

const bucketProducts = "products"

type record struct {
	domain.Product
	Seq uint64 `json:"seq"`
}

type Store struct {
	db *bolt.DB
}

func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketProducts))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func key(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (s *Store) Get(_ context.Context, id int) (domain.Product, error) {
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketProducts)).Get(key(id))
		if v == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	return rec.Product, err
}

func (s *Store) List(_ context.Context) ([]domain.Product, error) {
	var recs []record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProducts)).ForEach(func(_, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Bucket iteration is key-ordered; creation order comes from the seq
	// stamped at insert time.
	sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
	out := make([]domain.Product, len(recs))
	for i, rec := range recs {
		out[i] = rec.Product
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, p domain.Product) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketProducts))
		if b.Get(key(p.ID)) != nil {
			return domain.ErrDuplicateID
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(record{Product: p, Seq: seq})
		if err != nil {
			return err
		}
		return b.Put(key(p.ID), data)
	})
}

func (s *Store) Update(_ context.Context, p domain.Product) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketProducts))
		v := b.Get(key(p.ID))
		if v == nil {
			return domain.ErrNotFound
		}
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.Product = p
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key(p.ID), data)
	})
}

func (s *Store) Delete(_ context.Context, id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketProducts))
		if b.Get(key(id)) == nil {
			return domain.ErrNotFound
		}
		return b.Delete(key(id))
	})
}

func (s *Store) SetSpotlight(_ context.Context, id int, on bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketProducts))
		v := b.Get(key(id))
		if v == nil {
			return domain.ErrNotFound
		}
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.Spotlight = on
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key(id), data)
	})
}
