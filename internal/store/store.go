// Package store persists order records. The draft and the confirmed trails are
// two independent Store instances keyed by integer order id.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// ErrIDConflict indicates another writer took the id picked by Append.
var ErrIDConflict = errors.New("order id already taken")

// Store is a key-value collection of order records.
//
// LoadByID returns (nil, nil) when the id is absent. Append assigns the next id
// (max existing id + 1, but never below floor) and persists the record in one
// critical section, so concurrent appends never share an id. floor lets the
// caller skip ids that live outside this store.
type Store interface {
	LoadAll(ctx context.Context) ([]orders.OrderRecord, error)
	LoadByID(ctx context.Context, id int64) (*orders.OrderRecord, error)
	Upsert(ctx context.Context, rec orders.OrderRecord) error
	Append(ctx context.Context, rec orders.OrderRecord, floor int64) (orders.OrderRecord, error)
	Clear(ctx context.Context) error
}

func nextID(recs []orders.OrderRecord, floor int64) int64 {
	id := MaxID(recs) + 1
	if id < floor {
		return floor
	}
	return id
}

// MaxID returns the highest id in recs, or 0 when recs is empty.
func MaxID(recs []orders.OrderRecord) int64 {
	var max int64
	for _, r := range recs {
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}

func sortByID(recs []orders.OrderRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
