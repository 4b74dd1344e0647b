package queue

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Sender is the outbound half of the hub connection the store needs.
type Sender interface {
	Send(msg *protocol.ClientMessage) error
}

// Store is the client-side view of the server-owned shared queue. Every
// mutation is a request; the visible queue is replaced wholesale on each
// queue-updated broadcast and never computed locally.
type Store struct {
	sender  Sender
	selfID  string
	logger  *log.Logger
	nowFunc func() time.Time

	mu    sync.RWMutex
	items []protocol.QueueItem
}

// NewStore creates a queue store sending requests as the given device.
func NewStore(sender Sender, selfID string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		sender:  sender,
		selfID:  selfID,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Items returns a copy of the current visible queue.
func (s *Store) Items() []protocol.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]protocol.QueueItem, len(s.items))
	copy(items, s.items)
	return items
}

// Replace installs the authoritative queue from a queue-updated broadcast,
// discarding whatever was visible before, including the results of local
// requests still in flight.
func (s *Store) Replace(items []protocol.QueueItem) {
	if items == nil {
		items = []protocol.QueueItem{}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// Add requests appending an item. The id and provenance fields are stamped
// here; the item becomes visible only when the server broadcasts it back.
func (s *Store) Add(item protocol.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.AddedBy = s.selfID
	item.AddedAt = s.nowFunc().UnixMilli()
	return s.sender.Send(&protocol.ClientMessage{Type: protocol.MsgQueueAdd, Item: &item})
}

// Remove requests removal by id. Removing an already-removed id is a server
// no-op, so duplicate removes across devices are harmless.
func (s *Store) Remove(id string) error {
	return s.sender.Send(&protocol.ClientMessage{Type: protocol.MsgQueueRemove, ItemID: id})
}

// Clear requests emptying the queue.
func (s *Store) Clear() error {
	return s.sender.Send(&protocol.ClientMessage{Type: protocol.MsgQueueClear})
}

// Reorder requests the given id order.
func (s *Store) Reorder(ids []string) error {
	return s.sender.Send(&protocol.ClientMessage{Type: protocol.MsgQueueReorder, Order: ids})
}

// Refresh requests a fresh queue broadcast.
func (s *Store) Refresh() error {
	return s.sender.Send(&protocol.ClientMessage{Type: protocol.MsgQueueGet})
}

// PlayNext returns the local head immediately for responsiveness and fires the
// remove request behind it. Nil on an empty queue, with no message sent. Two
// devices racing here at worst issue a duplicate remove, which the server
// treats as a no-op.
func (s *Store) PlayNext() *protocol.QueueItem {
	s.mu.RLock()
	if len(s.items) == 0 {
		s.mu.RUnlock()
		return nil
	}
	head := s.items[0]
	s.mu.RUnlock()

	if err := s.Remove(head.ID); err != nil {
		s.logger.Printf("queue remove for play-next failed: %v", err)
	}
	return &head
}
