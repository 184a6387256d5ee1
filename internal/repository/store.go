package repository

import "context"

// Changes is a live notification channel for one owner-scoped collection.
// Every receive means "the collection changed, re-read it"; consumers fetch
// the full record set rather than a diff. Close releases the underlying
// watcher and closes C.
type Changes interface {
	C() <-chan struct{}
	Close()
}

// Store is the document-store boundary. Every operation is scoped to an owner
// so each identity keeps its own namespace, mirroring the original
// artifacts/{app}/users/{userId}/{collection} layout. Collections are created
// implicitly on first write.
type Store interface {
	// Insert writes a new document and returns its assigned id. A doc that
	// already carries an _id keeps it.
	Insert(ctx context.Context, owner, collection string, doc any) (string, error)

	// Replace overwrites the full document with the given id.
	Replace(ctx context.Context, owner, collection, id string, doc any) error

	// Delete removes the document with the given id.
	Delete(ctx context.Context, owner, collection, id string) error

	// FindByID decodes the document with the given id into out, or returns
	// models.ErrNotFound.
	FindByID(ctx context.Context, owner, collection, id string, out any) error

	// FindAll decodes every document in the collection into out, which must be
	// a pointer to a slice.
	FindAll(ctx context.Context, owner, collection string, out any) error

	// Watch opens a change notification channel for the collection.
	Watch(ctx context.Context, owner, collection string) (Changes, error)

	// WithTransaction runs fn atomically; every store call inside fn must use
	// the context fn receives. If fn returns an error nothing is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
