package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"
)

// DefaultDelay coalesces bursts of changes to one stream into a single write.
const DefaultDelay = 500 * time.Millisecond

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
)

// SnapshotSource provides the current state of a stream.
type SnapshotSource interface {
	Snapshot(id analyzer.StreamID) (analyzer.Snapshot, bool)
}

// SnapshotStore is the durable side of the Persister.
type SnapshotStore interface {
	Save(ctx context.Context, snap analyzer.Snapshot) error
	Delete(ctx context.Context, id analyzer.StreamID) error
}

type jobKind int

const (
	jobSave jobKind = iota
	jobDelete
)

type job struct {
	kind jobKind
	id   analyzer.StreamID
}

// Persister writes snapshots in the background. Changes to a stream are
// debounced by delay; deletes are queued immediately. All writes run on one
// goroutine so a delete is never overtaken by an older save.
type Persister struct {
	store SnapshotStore
	src   SnapshotSource
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	pending map[analyzer.StreamID]*time.Timer
	closed  bool

	jobs chan job
	done chan struct{}
}

// NewPersister starts the write loop. A non-positive delay uses DefaultDelay.
func NewPersister(store SnapshotStore, src SnapshotSource, delay time.Duration, log *slog.Logger) *Persister {
	if delay <= 0 {
		delay = DefaultDelay
	}
	p := &Persister{
		store:   store,
		src:     src,
		delay:   delay,
		log:     log,
		pending: make(map[analyzer.StreamID]*time.Timer),
		jobs:    make(chan job, queueSize),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Listener returns the analyzer listener that drives persistence.
func (p *Persister) Listener() analyzer.Listener {
	return func(ev analyzer.Event) {
		switch ev.Type {
		case analyzer.EventStreamCleared, analyzer.EventStreamEnded:
			p.cancel(ev.StreamID)
			p.enqueue(job{kind: jobDelete, id: ev.StreamID})
		case analyzer.EventWindowClosed, analyzer.EventSpikeDetected,
			analyzer.EventKeywordSpikeDetected, analyzer.EventSpikeAnnotated,
			analyzer.EventStreamRestored:
			p.schedule(ev.StreamID)
		}
	}
}

// schedule arms a save for id unless one is already pending.
func (p *Persister) schedule(id analyzer.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.pending[id]; ok {
		return
	}
	p.pending[id] = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.pending[id]; !ok {
			return
		}
		delete(p.pending, id)
		p.enqueueLocked(job{kind: jobSave, id: id})
	})
}

func (p *Persister) cancel(id analyzer.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.pending[id]; ok {
		t.Stop()
		delete(p.pending, id)
	}
}

// enqueue hands j to the write loop without blocking. Jobs arriving after
// Close are dropped.
func (p *Persister) enqueue(j job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueueLocked(j)
}

func (p *Persister) enqueueLocked(j job) {
	if p.closed {
		return
	}
	select {
	case p.jobs <- j:
	default:
		p.log.Warn("persist queue full, dropping job", slog.String("stream_id", string(j.id)))
	}
}

func (p *Persister) loop() {
	defer close(p.done)
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Persister) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch j.kind {
	case jobDelete:
		if err := p.store.Delete(ctx, j.id); err != nil {
			p.log.Error("delete snapshot failed", slog.String("stream_id", string(j.id)), slog.String("error", err.Error()))
		}
	case jobSave:
		snap, ok := p.src.Snapshot(j.id)
		if !ok {
			return
		}
		if err := p.store.Save(ctx, snap); err != nil {
			p.log.Error("save snapshot failed", slog.String("stream_id", string(j.id)), slog.String("error", err.Error()))
			return
		}
		p.log.Debug("snapshot saved", slog.String("stream_id", string(j.id)), slog.Int("spikes", len(snap.Spikes)))
	}
}

// Close saves every pending stream immediately and stops the write loop.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ids := make([]analyzer.StreamID, 0, len(p.pending))
	for id, t := range p.pending {
		t.Stop()
		ids = append(ids, id)
	}
	p.pending = nil
	p.mu.Unlock()

	for _, id := range ids {
		p.jobs <- job{kind: jobSave, id: id}
	}
	close(p.jobs)

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
