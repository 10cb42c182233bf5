package session

import (
	"container/list"
	"sync"
	"time"

	"expenses/internal/tracker"
)

// Store keeps one controller per session with sliding TTL and LRU eviction.
type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time

	stopCleanup  chan struct{}
	cleanupDone  chan struct{}
	shutdownOnce sync.Once
}

type entry struct {
	id        string
	ctl       *tracker.Controller
	expiresAt time.Time
}

func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Store{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Get returns the controller for id and extends its lifetime.
func (s *Store) Get(id string) (*tracker.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	now := s.now()
	if now.After(e.expiresAt) {
		s.removeElement(elem)
		return nil, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.lru.MoveToFront(elem)
	return e.ctl, true
}

// Put stores ctl under id, evicting the least recently used session when full.
func (s *Store) Put(id string, ctl *tracker.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{id: id, ctl: ctl, expiresAt: s.now().Add(s.ttl)}
	if elem, ok := s.items[id]; ok {
		elem.Value = e
		s.lru.MoveToFront(elem)
		return
	}
	s.items[id] = s.lru.PushFront(e)
	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
	}
}

func (s *Store) removeElement(elem *list.Element) {
	delete(s.items, elem.Value.(*entry).id)
	s.lru.Remove(elem)
}

// CleanExpired removes expired sessions and returns how many were dropped.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		s.removeElement(elem)
	}
	return len(expired)
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartCleanup runs CleanExpired every interval until Stop is called.
func (s *Store) StartCleanup(interval time.Duration, onClean func(removed int)) {
	s.stopCleanup = make(chan struct{})
	s.cleanupDone = make(chan struct{})
	go func() {
		defer close(s.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.CleanExpired(); n > 0 && onClean != nil {
					onClean(n)
				}
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

func (s *Store) Stop() {
	s.shutdownOnce.Do(func() {
		if s.stopCleanup != nil {
			close(s.stopCleanup)
			<-s.cleanupDone
		}
	})
}
