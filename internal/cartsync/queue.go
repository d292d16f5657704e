package cartsync

import (
	"context"
	"sync"
)

// queue runs the work of one cart at a time. Pending syncs coalesce: while
// a cart is busy, only the latest requested sync is kept.
type queue struct {
	ctx     context.Context
	process func(ctx context.Context, orderFormID string, productID string)

	mu     sync.Mutex
	carts  map[string]*cartWorker
	wg     sync.WaitGroup
	closed bool
}

type cartWorker struct {
	pending string
	calls   []func()
	running bool
}

func newQueue(ctx context.Context, process func(ctx context.Context, orderFormID, productID string)) *queue {
	return &queue{ctx: ctx, process: process, carts: make(map[string]*cartWorker)}
}

// sync schedules a price sync of orderFormID against productID, replacing
// any sync of that cart that has not started yet.
func (q *queue) sync(orderFormID, productID string) bool {
	return q.push(orderFormID, func(w *cartWorker) { w.pending = productID })
}

// call schedules fn to run in the cart's turn. Calls are never coalesced
// and run before pending syncs.
func (q *queue) call(orderFormID string, fn func()) bool {
	return q.push(orderFormID, func(w *cartWorker) { w.calls = append(w.calls, fn) })
}

func (q *queue) push(orderFormID string, add func(w *cartWorker)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	w, ok := q.carts[orderFormID]
	if !ok {
		w = &cartWorker{}
		q.carts[orderFormID] = w
	}
	add(w)
	if !w.running {
		w.running = true
		q.wg.Add(1)
		go q.drain(orderFormID, w)
	}
	return true
}

func (q *queue) drain(orderFormID string, w *cartWorker) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		switch {
		case len(w.calls) > 0:
			fn := w.calls[0]
			w.calls = w.calls[1:]
			q.mu.Unlock()
			fn()
		case w.pending != "":
			productID := w.pending
			w.pending = ""
			q.mu.Unlock()
			q.process(q.ctx, orderFormID, productID)
		default:
			w.running = false
			delete(q.carts, orderFormID)
			q.mu.Unlock()
			return
		}
	}
}

// close stops accepting work and waits for running workers to finish.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
