package openr

import (
	"sync"
)

// Publication is the fan-out unit pushed to PubQueue subscribers: the set
// of (key, record) pairs a single accepted write or accepted delta
// produced, tagged with who sent it and the flood path it has already
// traversed.
type Publication struct {
	Area         string
	KeyVals      map[string]Record
	ExpiredKeys  []string
	SenderID     string
	NodeIDsPath  []string
}

// InitializationEvent is the singleton KVSTORE_SYNCED marker -- see
// store.go's maybeSignalInitialized for when it fires.
type InitializationEvent struct{}

// pubItem is the tagged variant PubQueue actually carries; exactly one of
// its fields is set.
type pubItem struct {
	publication *Publication
	init        *InitializationEvent
}

// ErrQueueClosed is returned by Recv once the queue has been closed and
// drained -- the "terminal read error" promised to a blocked consumer in
// §7's Fatal error kind.
var ErrQueueClosed = Error{"publication queue is closed", eCLOSED}

// PubQueue is the multi-producer / single-consumer fan-out queue from
// §4.5: FIFO, lossless while open, and Close causes any pending or future
// Recv to return ErrQueueClosed.
//
// Multiple goroutines may call Push concurrently (the Store's run loop is
// the only producer in practice, but Push itself is safe from any
// goroutine). Recv is meant to be called by a single consumer, per the
// shared-resources note in §5 -- PubQueue does not serialize concurrent
// Recv calls beyond what the channel itself guarantees.
type PubQueue struct {
	items  chan pubItem
	once   sync.Once
	closed chan struct{}
}

// NewPubQueue returns an open queue with the given buffer depth. A
// depth of 0 is legal -- Push then blocks until Recv catches up, which is
// still lossless, just synchronous.
func NewPubQueue(depth int) *PubQueue {
	return &PubQueue{
		items:  make(chan pubItem, depth),
		closed: make(chan struct{}),
	}
}

// PushPublication enqueues a publication. It is the caller's
// responsibility to have already committed the corresponding AreaDb
// write before calling this, per the ordering guarantee in §5.2.
func (queue *PubQueue) PushPublication(publication Publication) {
	select {
	case queue.items <- pubItem{publication: &publication}:
	case <-queue.closed:
	}
}

// PushInitialized enqueues the KVSTORE_SYNCED marker. Callers are
// responsible for calling this at most once per Store lifetime (invariant
// 4); PubQueue itself does not deduplicate.
func (queue *PubQueue) PushInitialized() {
	event := InitializationEvent{}

	select {
	case queue.items <- pubItem{init: &event}:
	case <-queue.closed:
	}
}

// Close marks the queue closed. Idempotent; safe to call more than once.
// Items already enqueued before Close are still delivered to Recv before
// it starts returning ErrQueueClosed.
func (queue *PubQueue) Close() {
	queue.once.Do(func() {
		close(queue.closed)
		close(queue.items)
	})
}

// Recv blocks until the next publication or initialization event is
// available, or the queue is closed and drained. This is deliberately
// unbounded -- see spec.md §9's open question on PubQueue read timeouts;
// the contract is to block indefinitely, never to time out silently.
func (queue *PubQueue) Recv() (*Publication, *InitializationEvent, error) {
	item, ok := <-queue.items

	if !ok {
		return nil, nil, ErrQueueClosed
	}

	return item.publication, item.init, nil
}

// RecvPublication blocks until the next Publication specifically,
// skipping over any InitializationEvent items in between. This implements
// the Store facade's recv_publication operation.
func (queue *PubQueue) RecvPublication() (*Publication, error) {
	for {
		publication, _, err := queue.Recv()

		if err != nil {
			return nil, err
		}

		if publication != nil {
			return publication, nil
		}
	}
}

// RecvInitializedSignal blocks until KVSTORE_SYNCED specifically, skipping
// over any Publication items in between. This implements the Store
// facade's recv_kvstore_synced_signal operation.
func (queue *PubQueue) RecvInitializedSignal() error {
	for {
		_, event, err := queue.Recv()

		if err != nil {
			return err
		}

		if event != nil {
			return nil
		}
	}
}
