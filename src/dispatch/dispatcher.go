package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/executor"
	"github.com/stake-plus/govproposals/src/metrics"
)

// DefaultMaxConcurrent bounds commands executing at once across all senders.
const DefaultMaxConcurrent = 32

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("dispatch: stopped")

// Responder delivers a reply to the conversation an item came from.
type Responder func(ctx context.Context, reply string) error

// Inbound is one raw command delivered by a transport.
type Inbound struct {
	Transport      string
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	Respond        Responder
}

// Executor is implemented by *executor.Executor.
type Executor interface {
	Execute(ctx context.Context, cmd commands.Command, who executor.Identity) string
	ReplyForParseError(err error) string
}

type Options struct {
	MaxConcurrent int
	Metrics       *metrics.Metrics
}

// lane holds the pending items of one sender. A single goroutine drains it
// so that sender's commands run in delivery order.
type lane struct {
	pending []Inbound
}

// Dispatcher fans inbound commands out across goroutines. Commands from the
// same sender run one at a time in arrival order; different senders run in
// parallel up to MaxConcurrent.
type Dispatcher struct {
	parser  *commands.Parser
	exec    Executor
	metrics *metrics.Metrics
	sem     *semaphore.Weighted

	mu      sync.Mutex
	lanes   map[uint64]*lane
	stopped bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parser *commands.Parser, exec Executor, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		parser:  parser,
		exec:    exec,
		metrics: opts.Metrics,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		lanes:   make(map[uint64]*lane),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Parser returns the parser transports use to filter messages.
func (d *Dispatcher) Parser() *commands.Parser { return d.parser }

// Submit queues item on its sender's lane and returns immediately.
func (d *Dispatcher) Submit(item Inbound) error {
	if item.Respond == nil {
		return fmt.Errorf("dispatch: item without responder")
	}
	key := laneKey(item)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if l, ok := d.lanes[key]; ok {
		l.pending = append(l.pending, item)
		return nil
	}
	l := &lane{pending: []Inbound{item}}
	d.lanes[key] = l
	d.wg.Add(1)
	go d.drain(key, l)
	return nil
}

func (d *Dispatcher) drain(key uint64, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.pending) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		item := l.pending[0]
		l.pending[0] = Inbound{}
		l.pending = l.pending[1:]
		d.mu.Unlock()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			// Stop gave up waiting; still answer so no command goes silent.
			d.respond(context.Background(), item, executor.GenericFailureReply)
			continue
		}
		d.handle(item)
		d.sem.Release(1)
	}
}

func (d *Dispatcher) handle(item Inbound) {
	reply := d.Process(d.ctx, item)
	d.respond(context.WithoutCancel(d.ctx), item, reply)
}

// Process parses and executes item synchronously and returns the reply.
// It never panics.
func (d *Dispatcher) Process(ctx context.Context, item Inbound) (reply string) {
	requestID := uuid.NewString()
	start := time.Now()
	end := d.metrics.Begin()
	defer end()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: %s: panic handling %q from %s: %v\n%s", requestID, item.Text, item.SenderID, r, debug.Stack())
			d.metrics.ObserveCommand("unknown", metrics.OutcomePanic, time.Since(start))
			reply = executor.GenericFailureReply
		}
	}()

	cmd, err := d.parser.Parse(item.Text)
	if err != nil {
		log.Printf("dispatch: %s: parse error from %s: %v", requestID, item.SenderID, err)
		return d.exec.ReplyForParseError(err)
	}

	who := executor.ResolveIdentity(item.SenderID, item.SenderName)
	reply = d.exec.Execute(ctx, cmd, who)
	log.Printf("dispatch: %s: %s from %s (%s) handled in %s", requestID, cmd.Name(), item.SenderID, item.Transport, time.Since(start).Round(time.Millisecond))
	return reply
}

// respond is best effort: the store change already committed, so a failed
// send is logged and never retried as a whole command.
func (d *Dispatcher) respond(ctx context.Context, item Inbound, reply string) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ReplyFailed(item.Transport)
			log.Printf("dispatch: responder panic for %s: %v", item.SenderID, r)
		}
	}()
	if err := item.Respond(ctx, reply); err != nil {
		d.metrics.ReplyFailed(item.Transport)
		log.Printf("dispatch: reply to %s in %s failed: %v", item.SenderID, item.ConversationID, err)
	}
}

// Stop refuses new items and waits for queued ones to finish. When ctx
// expires first, commands still waiting for a slot are answered with the
// generic failure reply.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// laneKey groups items by sender across every conversation on a transport.
// Items with no sender id fall back to their conversation.
func laneKey(item Inbound) uint64 {
	if item.SenderID == "" {
		return xxhash.ChecksumString64(item.Transport + "|conv|" + item.ConversationID)
	}
	return xxhash.ChecksumString64(item.Transport + "|sender|" + item.SenderID)
}
