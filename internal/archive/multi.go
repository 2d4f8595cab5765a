package archive

import (
	"context"
	"errors"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
)

// Store is anything that can archive a completed session.
type Store interface {
	ArchiveSession(ctx context.Context, sess *session.Session) error
}

// Multi fans one archive call out to several stores. Every store is tried;
// errors are joined.
type Multi struct {
	stores []Store
}

func NewMulti(stores ...Store) *Multi {
	kept := make([]Store, 0, len(stores))
	for _, store := range stores {
		if store != nil {
			kept = append(kept, store)
		}
	}
	return &Multi{stores: kept}
}

func (m *Multi) ArchiveSession(ctx context.Context, sess *session.Session) error {
	var errs []error
	for _, store := range m.stores {
		if err := store.ArchiveSession(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
