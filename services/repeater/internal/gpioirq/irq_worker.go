// Package gpioirq turns GPIO interrupt callbacks into ordinary channel
// events. The ISR path never blocks: callbacks do a fast level read and a
// non-blocking send, and a single worker goroutine does the edge detection.
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Line is a GPIO input that can raise interrupts.
type Line interface {
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Event is delivered from the worker to its consumer.
type Event struct {
	ID    string
	Level bool
	Edge  Edge
	TS    time.Time
}

type isrEvent struct {
	id    string
	level bool // captured in the ISR
}

type watch struct {
	id        string
	edge      Edge
	lastLevel bool
	cancelIRQ func()
}

type Worker struct {
	// Written by ISRs; must never block them:
	isrQ chan isrEvent
	// Consumed by the service:
	outQ    chan Event
	stopped chan struct{}

	mu    sync.RWMutex
	lines map[string]*watch

	drops uint32
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 16
	}
	if outBuf <= 0 {
		outBuf = 16
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
		lines:   map[string]*watch{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

func (w *Worker) Events() <-chan Event { return w.outQ }

func (w *Worker) Done() <-chan struct{} { return w.stopped }

// RegisterLine hooks line's interrupt and starts delivering events for the
// requested edge. The returned cancel func unhooks the interrupt.
func (w *Worker) RegisterLine(id string, line Line, edge Edge) (func(), error) {
	if edge == EdgeNone {
		return func() {}, nil
	}
	wh := &watch{
		id:        id,
		edge:      edge,
		lastLevel: line.Get(),
	}

	// ISR handler: fast level read, non-blocking send.
	handler := func() {
		l := line.Get()
		select {
		case w.isrQ <- isrEvent{id: id, level: l}:
		default:
			atomic.AddUint32(&w.drops, 1)
		}
	}
	if err := line.SetIRQ(edge, handler); err != nil {
		return nil, err
	}
	wh.cancelIRQ = func() { _ = line.ClearIRQ() }

	w.mu.Lock()
	w.lines[id] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.lines[id]; ok {
			if cur.cancelIRQ != nil {
				cur.cancelIRQ()
			}
			delete(w.lines, id)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.lines[ev.id]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	now := time.Now()

	var e Edge
	if wh.edge == EdgeBoth {
		switch {
		case !wh.lastLevel && ev.level:
			e = EdgeRising
		case wh.lastLevel && !ev.level:
			e = EdgeFalling
		}
	} else {
		// The hardware only fired for the configured edge; trust it for
		// direction on the first observation.
		e = wh.edge
	}

	if e != EdgeNone {
		select {
		case w.outQ <- Event{ID: ev.id, Level: ev.level, Edge: e, TS: now}:
		default:
			// drop rather than stall behind a slow consumer
		}
	}

	wh.lastLevel = ev.level
}

func (w *Worker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }
