package auditevent

import "context"

type EntryRepository interface {
	Insert(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}
