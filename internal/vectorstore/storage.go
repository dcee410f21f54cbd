package vectorstore

import "context"

// Store persists index snapshots.
//
// Load returns domain.ErrIndexNotFound when nothing has been saved and
// domain.ErrIndexCorrupt when the saved artifacts disagree.
type Store interface {
	Save(ctx context.Context, ix *Index) error
	Load(ctx context.Context) (*Index, error)
}
