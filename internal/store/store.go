package store

import (
	"context"
)

// Records defines the generic keyed-record operations over the registered
// tables. Every read skips soft-deleted rows and every write records the
// acting identity.
type Records interface {
	FetchAll(ctx context.Context, table string, filter map[string]any) ([]Record, error)
	FetchOne(ctx context.Context, table string, id int64) (Record, error)
	Insert(ctx context.Context, table string, fields map[string]any, actor string) (Record, error)
	Update(ctx context.Context, table string, id int64, fields map[string]any, actor string) (Record, error)
	SoftDelete(ctx context.Context, table string, id int64, actor string) (Record, error)
	FetchRelated(ctx context.Context, rel Relation, id int64) ([]Record, error)
	Ping(ctx context.Context) error
}

var _ Records = (*SQLStore)(nil)
