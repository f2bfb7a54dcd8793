package dnavahi

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/holoplot/go-avahi"
	"go.uber.org/multierr"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

type browserParams struct {
	opts           dncore.BrowseOptions
	bus            Bus
	signalCh       chan *dbus.Signal
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

	// Set in Start(), before the loop is started.
	path dbus.ObjectPath

	resolveCh chan resolveCompletion

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
		resolveCh:  make(chan resolveCompletion),
		reconciler: dncore.NewReconciler(params.opts),
	}
}

func (b *browser) ID() string {
	return b.id
}

func (b *browser) Events() <-chan dncore.Event {
	return b.queue.Events()
}

// Start creates the service browser object and starts signals processing.
func (b *browser) Start() error {
	if err := b.lifecycle.Start(); err != nil {
		return err
	}

	path, err := b.params.bus.ServiceBrowserNew(InterfaceUnspec,
		protoFromIPVersion(b.params.opts.IPVersion),
		b.params.opts.ServiceType(), "", 0)
	if err != nil {
		return fmt.Errorf("dnssd-avahi: failed to create service browser: type=%s: %w",
			b.params.opts.ServiceType(), err)
	}

	b.path = path

	b.wg.Add(1)
	go b.loop()

	core.LogDbg.Printf("dnssd-avahi: browser started: id=%s path=%s\n", b.id, path)

	return nil
}

func (b *browser) Stop() error {
	prev := b.lifecycle.Stop()
	if prev == dncore.StateStopped || prev == dncore.StateDestroyed {
		return nil
	}

	err := b.shutdown()

	core.LogDbg.Printf("dnssd-avahi: browser stopped: id=%s\n", b.id)

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

	core.LogInf.Printf("dnssd-avahi: browser destroyed: id=%s\n", b.id)

	return err
}

func (b *browser) shutdown() error {
	b.cancel()
	b.wg.Wait()

	var err error

	if b.path != "" {
		err = multierr.Append(err, b.params.bus.ServiceBrowserFree(b.path))
	}

	return multierr.Append(err, b.params.bus.Unsubscribe(b.params.signalCh))
}

func (b *browser) loop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return

		case sig, ok := <-b.params.signalCh:
			if !ok {
				return
			}
			b.handleSignal(sig)

		case completion := <-b.resolveCh:
			b.handleResolved(completion)
		}
	}
}

func (b *browser) handleSignal(sig *dbus.Signal) {
	if b.failed || sig.Path != b.path {
		return
	}

	switch sig.Name {
	case signalItemNew:
		item, err := parseBrowseItem(sig)
		if err != nil {
			core.LogWrn.Printf("dnssd-avahi: %v\n", err)
			return
		}

		inst := instanceKey(item)
		if b.reconciler.Seen(inst) {
			core.LogDbg.Printf("dnssd-avahi: instance found: id=%s name=%q src=%s\n",
				b.id, item.Name, inst.Source)

			b.wg.Add(1)
			go b.resolve(inst, item)
		}

	case signalItemRemove:
		item, err := parseBrowseItem(sig)
		if err != nil {
			core.LogWrn.Printf("dnssd-avahi: %v\n", err)
			return
		}

		if record, ok := b.reconciler.Removed(instanceKey(item)); ok {
			core.LogInf.Printf("dnssd-avahi: service removed: id=%s %s\n", b.id, record)

			b.queue.Push(dncore.RemovedEvent(record))
		}

	case signalFailure:
		msg := parseFailure(sig)

		core.LogErr.Printf("dnssd-avahi: service browser failed: id=%s err=%s\n", b.id, msg)

		b.failed = true
		b.queue.Push(dncore.FatalEvent(
			fmt.Errorf("dnssd-avahi: service browser failed: %s: %w", msg, status.StatusError)))

	case signalAllForNow, signalCacheExhausted:
		core.LogDbg.Printf("dnssd-avahi: %s: id=%s\n", sig.Name, b.id)
	}
}

func (b *browser) handleResolved(completion resolveCompletion) {
	if b.failed {
		return
	}

	if completion.err != nil {
		core.LogWrn.Printf("dnssd-avahi: failed to resolve: id=%s name=%q err=%v\n",
			b.id, completion.inst.Name, completion.err)

		b.queue.Push(dncore.ErrorEvent(completion.err))

		if record, ok := b.reconciler.ResolveFailed(completion.inst); ok {
			b.queue.Push(dncore.AddedEvent(record))
		}

		return
	}

	if record, ok := b.reconciler.Resolved(completion.inst, completion.res); ok {
		core.LogInf.Printf("dnssd-avahi: service added: id=%s %s\n", b.id, record)

		b.queue.Push(dncore.AddedEvent(record))
	}
}

type resolveReply struct {
	service avahi.Service
	err     error
}

func (b *browser) resolve(inst dncore.InstanceKey, item browseItem) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, b.params.resolveTimeout)
	defer cancel()

	replyCh := make(chan resolveReply, 1)

	// The D-Bus call can't be canceled, the reply is dropped if not needed.
	go func() {
		service, err := b.params.bus.ResolveService(item.Interface, item.Protocol,
			item.Name, item.ServiceType, item.Domain,
			protoFromIPVersion(b.params.opts.IPVersion), 0)

		replyCh <- resolveReply{service: service, err: err}
	}()

	completion := resolveCompletion{inst: inst}

	select {
	case reply := <-replyCh:
		if reply.err != nil {
			completion.err = fmt.Errorf("dnssd-avahi: resolve failed: name=%q: %w",
				inst.Name, reply.err)
		} else {
			completion.res, completion.err = makeResolveResult(reply.service)
		}

	case <-ctx.Done():
		completion.err = fmt.Errorf("dnssd-avahi: resolve failed: name=%q timeout=%s: %w",
			inst.Name, b.params.resolveTimeout, ctx.Err())
	}

	select {
	case b.resolveCh <- completion:
	case <-b.ctx.Done():
	}
}

func makeResolveResult(service avahi.Service) (dncore.ResolveResult, error) {
	ip := net.ParseIP(service.Address)
	if ip == nil {
		return dncore.ResolveResult{}, fmt.Errorf(
			"dnssd-avahi: invalid address: name=%q addr=%q: %w",
			service.Name, service.Address, status.StatusInvalidArg)
	}

	return dncore.ResolveResult{
		Host:      service.Host,
		Port:      int(service.Port),
		Addresses: []string{sysnet.FormatIP(ip, int(service.Interface))},
		Txt:       dncore.ParseTxtRecordBytes(service.Txt),
	}, nil
}

func instanceKey(item browseItem) dncore.InstanceKey {
	return dncore.InstanceKey{
		Source:      fmt.Sprintf("%d/%d", item.Interface, item.Protocol),
		Name:        item.Name,
		ServiceType: item.ServiceType,
		Domain:      item.Domain,
	}
}

func protoFromIPVersion(version dncore.IPVersion) int32 {
	if version == dncore.IPv6 {
		return ProtoInet6
	}

	return ProtoInet
}

var _ dncore.Browser = (*browser)(nil)
