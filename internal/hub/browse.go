package hub

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

type pendingBrowse struct {
	requestID string
	resultCh  chan browseOutcome
}

type browseOutcome struct {
	results []protocol.BrowseResult
	err     error
}

// Browse asks another device to enumerate part of its library and waits for
// the correlated response. Bounded by the client browse timeout; a Disconnect
// resolves the call with ErrNotConnected instead of leaving it hanging.
func (c *Client) Browse(ctx context.Context, targetID string, query protocol.BrowseQuery) ([]protocol.BrowseResult, error) {
	requestID := uuid.NewString()
	pending := &pendingBrowse{
		requestID: requestID,
		resultCh:  make(chan browseOutcome, 1),
	}

	c.mu.Lock()
	if c.status != StatusConnected || c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pendingBrowses[requestID] = pending
	err := c.writeFrame(c.conn, &protocol.ClientMessage{
		Type:      protocol.MsgBrowseRequest,
		TargetID:  targetID,
		RequestID: requestID,
		Query:     &query,
	})
	c.mu.Unlock()

	if err != nil {
		c.dropBrowse(requestID)
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.dropBrowse(requestID)
		return nil, ctx.Err()
	case <-time.After(c.browseTimeout):
		c.dropBrowse(requestID)
		return nil, ErrBrowseTimeout
	case outcome := <-pending.resultCh:
		return outcome.results, outcome.err
	}
}

// resolveBrowse completes the pending call matching an inbound
// browse-response. A response with no matching pending callback is meaningless
// and ignored.
func (c *Client) resolveBrowse(msg *protocol.ServerMessage) {
	c.mu.Lock()
	pending, ok := c.pendingBrowses[msg.RequestID]
	if ok {
		delete(c.pendingBrowses, msg.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Printf("browse response for unknown request: %s", msg.RequestID)
		return
	}
	pending.resultCh <- browseOutcome{results: msg.Results}
}

func (c *Client) dropBrowse(requestID string) {
	c.mu.Lock()
	delete(c.pendingBrowses, requestID)
	c.mu.Unlock()
}

// failPendingBrowsesLocked rejects every outstanding browse. Caller holds c.mu.
func (c *Client) failPendingBrowsesLocked(err error) {
	for _, pending := range c.pendingBrowses {
		pending.resultCh <- browseOutcome{err: err}
	}
	c.pendingBrowses = make(map[string]*pendingBrowse)
}
