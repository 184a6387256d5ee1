package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
)

type subscription struct {
	coll   models.Collection
	done   chan struct{}
	once   sync.Once
	closer func()
}

func (sub *subscription) stop() {
	sub.once.Do(func() {
		close(sub.done)
		sub.closer()
	})
}

// Snapshot is one subscription delivery: the full current record set, or the
// terminal error that broke the stream. Err is set on at most the final
// element before the channel closes.
type Snapshot[T any] struct {
	Records []T
	Err     error
}

// Subscribe opens a standing subscription on one collection. The returned
// channel delivers the full current record set: one snapshot immediately,
// then one per remote change. The channel closes when cancel is called, the
// context ends, or the synchronizer is closed; when the underlying store
// breaks mid-stream the last element carries a SubscriptionError so consumers
// can tell a failure from a deliberate close. Consumers diff against their
// last-seen snapshot if they need fine-grained change detection.
func Subscribe[T any](ctx context.Context, s *Synchronizer, coll models.Collection) (<-chan Snapshot[T], func(), error) {
	if !coll.Valid() {
		return nil, nil, &models.SubscriptionError{Collection: coll, Err: &models.ValidationError{Field: "collection", Reason: "unknown collection"}}
	}

	changes, err := s.store.Watch(ctx, s.identity.UserID, string(coll))
	if err != nil {
		return nil, nil, &models.SubscriptionError{Collection: coll, Err: err}
	}

	sub := &subscription{coll: coll, done: make(chan struct{}), closer: changes.Close}
	if !s.track(sub) {
		sub.stop()
		return nil, nil, &models.SubscriptionError{Collection: coll, Err: context.Canceled}
	}

	out := make(chan Snapshot[T], 1)

	go func() {
		defer close(out)
		defer s.untrack(sub)

		push := func() bool {
			records, err := List[T](ctx, s, coll)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				s.logger.Error("snapshot load failed",
					zap.String("collection", string(coll)), zap.Error(err))
				select {
				case out <- Snapshot[T]{Err: &models.SubscriptionError{Collection: coll, Err: err}}:
				case <-sub.done:
				case <-ctx.Done():
				}
				return false
			}
			select {
			case out <- Snapshot[T]{Records: records}:
				return true
			case <-sub.done:
			case <-ctx.Done():
			}
			return false
		}

		if !push() {
			return
		}

		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-changes.C():
				if !ok {
					return
				}
				if !push() {
					return
				}
			}
		}
	}()

	return out, sub.stop, nil
}

// track registers a live subscription; it refuses once the synchronizer has
// been closed so no listener can outlive its identity.
func (s *Synchronizer) track(sub *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.subs[sub] = struct{}{}
	return true
}

func (s *Synchronizer) untrack(sub *subscription) {
	sub.stop()
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}
