package client

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InFlight marks issues with a mutation outstanding. Keys are independent:
// a vote on one issue never blocks another.
type InFlight struct {
	mu   sync.Mutex
	busy map[primitive.ObjectID]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{busy: map[primitive.ObjectID]struct{}{}}
}

// Acquire claims id. The returned release must be called exactly once.
func (f *InFlight) Acquire(id primitive.ObjectID) (release func(), err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.busy[id]; ok {
		return nil, ErrInFlight
	}
	f.busy[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.busy, id)
			f.mu.Unlock()
		})
	}, nil
}

func (f *InFlight) Busy(id primitive.ObjectID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.busy[id]
	return ok
}
