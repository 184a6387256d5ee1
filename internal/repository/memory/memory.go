package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository"
)

// Store is an in-process repository.Store used for development mode and
// tests. Documents are held as marshaled bson so reads always decode a deep
// copy. Transactions serialize against each other and roll back by restoring
// a pre-transaction snapshot.
type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	data     map[string]*collectionData
	watchers map[string]map[*memChanges]struct{}
}

type collectionData struct {
	order []string
	docs  map[string][]byte
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		data:     make(map[string]*collectionData),
		watchers: make(map[string]map[*memChanges]struct{}),
	}
}

func key(owner, collection string) string {
	return owner + "/" + collection
}

func (s *Store) coll(owner, collection string) *collectionData {
	k := key(owner, collection)
	c, ok := s.data[k]
	if !ok {
		c = &collectionData{docs: make(map[string][]byte)}
		s.data[k] = c
	}
	return c
}

// Insert stores a new document and returns its id.
func (s *Store) Insert(_ context.Context, owner, collection string, doc any) (string, error) {
	raw, err := encode(doc)
	if err != nil {
		return "", err
	}

	id, _ := raw["_id"].(string)
	if id == "" {
		id = primitive.NewObjectID().Hex()
		raw["_id"] = id
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	c := s.coll(owner, collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = data
	s.mu.Unlock()

	s.notify(owner, collection)
	return id, nil
}

// Replace overwrites the full document, creating it when absent.
func (s *Store) Replace(_ context.Context, owner, collection, id string, doc any) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	raw["_id"] = id

	data, err := bson.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	c := s.coll(owner, collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = data
	s.mu.Unlock()

	s.notify(owner, collection)
	return nil
}

// Delete removes the document with the given id. Absent documents are a no-op.
func (s *Store) Delete(_ context.Context, owner, collection, id string) error {
	s.mu.Lock()
	c := s.coll(owner, collection)
	if _, exists := c.docs[id]; exists {
		delete(c.docs, id)
		for i, existing := range c.order {
			if existing == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.notify(owner, collection)
	return nil
}

// FindByID decodes the document with the given id into out.
func (s *Store) FindByID(_ context.Context, owner, collection, id string, out any) error {
	s.mu.Lock()
	data, ok := s.coll(owner, collection).docs[id]
	s.mu.Unlock()

	if !ok {
		return models.ErrNotFound
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// FindAll decodes the full collection, in insertion order, into out.
func (s *Store) FindAll(_ context.Context, owner, collection string, out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("find all %s: out must be a pointer to a slice", collection)
	}

	s.mu.Lock()
	c := s.coll(owner, collection)
	raws := make([][]byte, 0, len(c.order))
	for _, id := range c.order {
		raws = append(raws, c.docs[id])
	}
	s.mu.Unlock()

	slice := v.Elem()
	slice.Set(reflect.MakeSlice(slice.Type(), 0, len(raws)))
	elemType := slice.Type().Elem()

	for _, data := range raws {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(data, elem.Interface()); err != nil {
			return fmt.Errorf("decode %s: %w", collection, err)
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	v.Elem().Set(slice)
	return nil
}

// Watch registers a change notification channel for the collection.
func (s *Store) Watch(_ context.Context, owner, collection string) (repository.Changes, error) {
	ch := &memChanges{
		signal: make(chan struct{}, 1),
		store:  s,
		key:    key(owner, collection),
	}

	s.mu.Lock()
	set, ok := s.watchers[ch.key]
	if !ok {
		set = make(map[*memChanges]struct{})
		s.watchers[ch.key] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	return ch, nil
}

// WithTransaction serializes fn against other transactions and restores the
// pre-transaction state when fn fails. Non-transactional writers are not
// blocked; that is acceptable for a dev store with a single caller.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) snapshot() map[string]*collectionData {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]*collectionData, len(s.data))
	for k, c := range s.data {
		docs := make(map[string][]byte, len(c.docs))
		for id, data := range c.docs {
			docs[id] = data
		}
		copied[k] = &collectionData{
			order: append([]string(nil), c.order...),
			docs:  docs,
		}
	}
	return copied
}

func (s *Store) restore(snapshot map[string]*collectionData) {
	s.mu.Lock()
	s.data = snapshot
	keys := make([]string, 0, len(s.watchers))
	for k := range s.watchers {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.notifyKey(k)
	}
}

func (s *Store) notify(owner, collection string) {
	s.notifyKey(key(owner, collection))
}

func (s *Store) notifyKey(k string) {
	s.mu.Lock()
	targets := make([]*memChanges, 0, len(s.watchers[k]))
	for w := range s.watchers[k] {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
}

func encode(doc any) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return raw, nil
}

type memChanges struct {
	signal chan struct{}
	store  *Store
	key    string
	once   sync.Once
}

func (c *memChanges) C() <-chan struct{} { return c.signal }

func (c *memChanges) Close() {
	c.once.Do(func() {
		c.store.mu.Lock()
		delete(c.store.watchers[c.key], c)
		c.store.mu.Unlock()
		close(c.signal)
	})
}
