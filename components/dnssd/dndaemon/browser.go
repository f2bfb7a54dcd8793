package dndaemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnwire"
)

type browserParams struct {
	opts           dncore.BrowseOptions
	conn           *dnwire.Conn
	dial           dialFunc
	resolveTimeout time.Duration
	onDestroy      func(dncore.Browser)
}

type resolveCompletion struct {
	inst dncore.InstanceKey
	res  dncore.ResolveResult
	err  error
}

type browser struct {
	id     string
	params browserParams

	lifecycle dncore.Lifecycle
	queue     *dncore.EventQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	replyCh   chan *dnwire.BrowseReply
	resolveCh chan resolveCompletion
	failCh    chan error

	// Owned by the loop goroutine.
	reconciler *dncore.Reconciler
	failed     bool
}

func newBrowser(params browserParams) *browser {
	ctx, cancel := context.WithCancel(context.Background())

	return &browser{
		id:         uuid.NewString(),
		params:     params,
		queue:      dncore.NewEventQueue(),
		ctx:        ctx,
		cancel:     cancel,
		replyCh:    make(chan *dnwire.BrowseReply),
		resolveCh:  make(chan resolveCompletion),
		failCh:     make(chan error, 1),
		reconciler: dncore.NewReconciler(params.opts),
	}
}

func (b *browser) ID() string {
	return b.id
}

func (b *browser) Events() <-chan dncore.Event {
	return b.queue.Events()
}

func (b *browser) Start() error {
	if err := b.lifecycle.Start(); err != nil {
		return err
	}

	b.wg.Add(2)
	go b.read()
	go b.loop()

	core.LogDbg.Printf("dnssd-daemon: browser started: id=%s\n", b.id)

	return nil
}

func (b *browser) Stop() error {
	prev := b.lifecycle.Stop()
	if prev == dncore.StateStopped || prev == dncore.StateDestroyed {
		return nil
	}

	err := b.shutdown()

	core.LogDbg.Printf("dnssd-daemon: browser stopped: id=%s\n", b.id)

	return err
}

func (b *browser) Destroy() error {
	prev := b.lifecycle.Destroy()
	if prev == dncore.StateDestroyed {
		return nil
	}

	var err error
	if prev != dncore.StateStopped {
		err = b.shutdown()
	}

	_ = b.queue.Close()

	if b.params.onDestroy != nil {
		b.params.onDestroy(b)
	}

	core.LogInf.Printf("dnssd-daemon: browser destroyed: id=%s\n", b.id)

	return err
}

// shutdown cancels the pending resolutions and closes the browse connection,
// which unblocks the reader.
func (b *browser) shutdown() error {
	b.cancel()
	err := b.params.conn.Close()
	b.wg.Wait()

	return err
}

func (b *browser) read() {
	defer b.wg.Done()

	handler := func(reply dnwire.Reply) {
		browseReply, ok := reply.(*dnwire.BrowseReply)
		if !ok {
			core.LogWrn.Printf("dnssd-daemon: unexpected reply on browse connection: id=%s\n", b.id)
			return
		}

		select {
		case b.replyCh <- browseReply:
		case <-b.ctx.Done():
		}
	}

	for {
		// The browse read has no timeout, closing the connection cancels it.
		if err := b.params.conn.ProcessReply(context.Background(), handler); err != nil {
			if b.ctx.Err() == nil {
				b.failCh <- err
			}

			return
		}
	}
}

func (b *browser) loop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return

		case reply := <-b.replyCh:
			b.handleBrowseReply(reply)

		case completion := <-b.resolveCh:
			b.handleResolved(completion)

		case err := <-b.failCh:
			core.LogErr.Printf("dnssd-daemon: browse connection failed: id=%s err=%v\n", b.id, err)

			b.failed = true
			b.queue.Push(dncore.FatalEvent(fmt.Errorf("dnssd-daemon: browse connection failed: %w", err)))
		}
	}
}

func (b *browser) handleBrowseReply(reply *dnwire.BrowseReply) {
	if b.failed {
		return
	}

	if reply.Err != nil {
		core.LogWrn.Printf("dnssd-daemon: browse error: id=%s err=%v\n", b.id, reply.Err)

		b.queue.Push(dncore.ErrorEvent(fmt.Errorf("dnssd-daemon: browse error: %w", reply.Err)))
		return
	}

	inst := dncore.InstanceKey{
		Source:      strconv.FormatUint(uint64(reply.InterfaceIndex), 10),
		Name:        reply.Name,
		ServiceType: reply.ServiceType,
		Domain:      reply.Domain,
	}

	if reply.Add() {
		if b.reconciler.Seen(inst) {
			core.LogDbg.Printf("dnssd-daemon: instance found: id=%s name=%q if=%d\n",
				b.id, inst.Name, reply.InterfaceIndex)

			b.wg.Add(1)
			go b.resolve(inst, reply.InterfaceIndex)
		}

		return
	}

	if record, ok := b.reconciler.Removed(inst); ok {
		b.queue.Push(dncore.RemovedEvent(record))
	}
}

func (b *browser) handleResolved(completion resolveCompletion) {
	if b.failed {
		return
	}

	if completion.err != nil {
		core.LogWrn.Printf("dnssd-daemon: failed to resolve: id=%s name=%q err=%v\n",
			b.id, completion.inst.Name, completion.err)

		b.queue.Push(dncore.ErrorEvent(completion.err))

		if record, ok := b.reconciler.ResolveFailed(completion.inst); ok {
			b.queue.Push(dncore.AddedEvent(record))
		}

		return
	}

	if record, ok := b.reconciler.Resolved(completion.inst, completion.res); ok {
		core.LogInf.Printf("dnssd-daemon: service added: id=%s %s\n", b.id, record)

		b.queue.Push(dncore.AddedEvent(record))
	}
}

func (b *browser) resolve(inst dncore.InstanceKey, ifIndex uint32) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, b.params.resolveTimeout)
	defer cancel()

	r := resolver{
		dial:      b.params.dial,
		ipVersion: b.params.opts.IPVersion,
	}

	res, err := r.resolve(ctx, inst, ifIndex)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: timeout=%s", err, b.params.resolveTimeout)
		}
		err = fmt.Errorf("dnssd-daemon: resolve failed: name=%q: %w", inst.Name, err)
	}

	select {
	case b.resolveCh <- resolveCompletion{inst: inst, res: res, err: err}:
	case <-b.ctx.Done():
	}
}

var _ dncore.Browser = (*browser)(nil)
