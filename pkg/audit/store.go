package audit

import (
	"context"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// Store is the append-only view of the admin_logs collection.
// It has no update or delete path; storage.Store satisfies it.
type Store interface {
	Insert(ctx context.Context, coll storage.Collection, rec storage.Record) error
	Find(ctx context.Context, coll storage.Collection, q storage.Query) ([]storage.Record, error)
}

var _ Store = storage.Store(nil)

func recent(ctx context.Context, s Store, f storage.Filter, limit int) ([]Entry, error) {
	recs, err := s.Find(ctx, storage.CollectionLogs, storage.Query{
		Filter: f,
		Limit:  limit,
		Newest: true,
	})
	if err != nil {
		return nil, err
	}
	return storage.DecodeAll[Entry](recs)
}
