package dnzeroconf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/google/uuid"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

type browserParams struct {
	opts           dncore.BrowseOptions
	domain         string
	browse         BrowseFunc
	resolver       sysnet.Resolver
	retryInterval  time.Duration
	resolveTimeout time.Duration
	subscribe      func(ifaceSubscriber) []*ifaceClient
	unsubscribe    func(ifaceSubscriber)
	onDestroy      func(dncore.Browser)
}

type ifaceChange struct {
	ic    *ifaceClient
	added bool
}

type entryMessage struct {
	session *session
	entry   *zeroconf.ServiceEntry
	removed bool
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

	ifaceCh   chan ifaceChange
	entryCh   chan entryMessage
	resolveCh chan resolveCompletion

	// Owned by the loop goroutine.
	reconciler *dncore.Reconciler
	sessions   map[string]*session
}

func newBrowser(params browserParams) *browser {
	ctx, cancel := context.WithCancel(context.Background())

	return &browser{
		id:         uuid.NewString(),
		params:     params,
		queue:      dncore.NewEventQueue(),
		ctx:        ctx,
		cancel:     cancel,
		ifaceCh:    make(chan ifaceChange),
		entryCh:    make(chan entryMessage),
		resolveCh:  make(chan resolveCompletion),
		reconciler: dncore.NewReconciler(params.opts),
		sessions:   make(map[string]*session),
	}
}

func (b *browser) ID() string {
	return b.id
}

func (b *browser) Events() <-chan dncore.Event {
	return b.queue.Events()
}

// Start subscribes to the interface changes and starts a session per known address.
func (b *browser) Start() error {
	if err := b.lifecycle.Start(); err != nil {
		return err
	}

	ifaces := b.params.subscribe(b)

	b.wg.Add(1)
	go b.loop(ifaces)

	core.LogDbg.Printf("dnssd-zeroconf: browser started: id=%s ifaces=%d\n", b.id, len(ifaces))

	return nil
}

func (b *browser) Stop() error {
	prev := b.lifecycle.Stop()
	if prev == dncore.StateStopped || prev == dncore.StateDestroyed {
		return nil
	}

	b.shutdown()

	core.LogDbg.Printf("dnssd-zeroconf: browser stopped: id=%s\n", b.id)

	return nil
}

func (b *browser) Destroy() error {
	prev := b.lifecycle.Destroy()
	if prev == dncore.StateDestroyed {
		return nil
	}

	if prev != dncore.StateStopped {
		b.shutdown()
	}

	_ = b.queue.Close()

	if b.params.onDestroy != nil {
		b.params.onDestroy(b)
	}

	core.LogInf.Printf("dnssd-zeroconf: browser destroyed: id=%s\n", b.id)

	return nil
}

func (b *browser) shutdown() {
	b.params.unsubscribe(b)
	b.cancel()
	b.wg.Wait()
}

func (b *browser) ifaceAdded(ic *ifaceClient) {
	b.notify(ifaceChange{ic: ic, added: true})
}

func (b *browser) ifaceRemoved(ic *ifaceClient) {
	b.notify(ifaceChange{ic: ic})
}

func (b *browser) notify(change ifaceChange) {
	select {
	case b.ifaceCh <- change:
	case <-b.ctx.Done():
	}
}

func (b *browser) loop(ifaces []*ifaceClient) {
	defer b.wg.Done()

	for _, ic := range ifaces {
		b.startSession(ic)
	}

	for {
		select {
		case <-b.ctx.Done():
			return

		case change := <-b.ifaceCh:
			if change.added {
				b.startSession(change.ic)
			} else {
				b.stopSession(change.ic)
			}

		case msg := <-b.entryCh:
			b.handleEntry(msg)

		case completion := <-b.resolveCh:
			b.handleResolved(completion)
		}
	}
}

func (b *browser) startSession(ic *ifaceClient) {
	if ic.addr.IsIPv6() != (b.params.opts.IPVersion == dncore.IPv6) {
		return
	}

	key := ic.addr.Key()
	if _, ok := b.sessions[key]; ok {
		return
	}

	s := newSession(b.ctx, ic, sessionParams{
		serviceType:   b.params.opts.ServiceType(),
		domain:        b.params.domain,
		browse:        b.params.browse,
		retryInterval: b.params.retryInterval,
		entryCh:       b.entryCh,
	})
	b.sessions[key] = s

	core.LogDbg.Printf("dnssd-zeroconf: session started: id=%s key=%s\n", b.id, key)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		s.run()
	}()
}

func (b *browser) stopSession(ic *ifaceClient) {
	key := ic.addr.Key()

	s, ok := b.sessions[key]
	if !ok {
		return
	}

	bindErr := s.bindError()

	s.stop()
	delete(b.sessions, key)

	core.LogDbg.Printf("dnssd-zeroconf: session stopped: id=%s key=%s\n", b.id, key)

	if bindErr != nil {
		core.LogWrn.Printf("dnssd-zeroconf: browsing abandoned: id=%s key=%s err=%v\n",
			b.id, key, bindErr)

		b.queue.Push(dncore.ErrorEvent(
			fmt.Errorf("dnssd-zeroconf: browsing abandoned: key=%s: %w", key, bindErr)))
	}

	for _, record := range b.reconciler.RemoveSource(key) {
		core.LogInf.Printf("dnssd-zeroconf: service removed: id=%s %s\n", b.id, record)

		b.queue.Push(dncore.RemovedEvent(record))
	}
}

func (b *browser) handleEntry(msg entryMessage) {
	key := msg.session.ic.addr.Key()

	// Late entry of the stopped session.
	if b.sessions[key] != msg.session {
		return
	}

	entry := msg.entry
	inst := dncore.InstanceKey{
		Source:      key,
		Name:        entry.Instance,
		ServiceType: entry.Service,
		Domain:      entry.Domain,
	}

	if msg.removed {
		if record, ok := b.reconciler.Removed(inst); ok {
			core.LogInf.Printf("dnssd-zeroconf: service removed: id=%s %s\n", b.id, record)

			b.queue.Push(dncore.RemovedEvent(record))
		}

		return
	}

	if !b.reconciler.Seen(inst) {
		return
	}

	res := dncore.ResolveResult{
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: b.entryAddresses(msg.session.ic.addr, entry),
		Txt:       dncore.ParseTxtRecord(entry.Text),
	}

	if len(res.Addresses) > 0 {
		b.handleResolved(resolveCompletion{inst: inst, res: res})
		return
	}

	if b.params.opts.IPVersion == dncore.IPv4 && entry.HostName != "" && b.params.resolver != nil {
		b.wg.Add(1)
		go b.resolve(inst, res)

		return
	}

	b.handleResolved(resolveCompletion{
		inst: inst,
		err: fmt.Errorf("dnssd-zeroconf: no %s address: name=%q host=%q: %w",
			b.params.opts.IPVersion, entry.Instance, entry.HostName, status.StatusNoData),
	})
}

func (b *browser) entryAddresses(addr sysnet.InterfaceAddr, entry *zeroconf.ServiceEntry) []string {
	var addrs []string

	if b.params.opts.IPVersion == dncore.IPv6 {
		for _, ip := range entry.AddrIPv6 {
			addrs = append(addrs, sysnet.FormatIP(ip, addr.Index))
		}
	} else {
		for _, ip := range entry.AddrIPv4 {
			addrs = append(addrs, ip.String())
		}
	}

	return addrs
}

func (b *browser) handleResolved(completion resolveCompletion) {
	if completion.err != nil {
		core.LogWrn.Printf("dnssd-zeroconf: failed to resolve: id=%s name=%q err=%v\n",
			b.id, completion.inst.Name, completion.err)

		b.queue.Push(dncore.ErrorEvent(completion.err))

		if record, ok := b.reconciler.ResolveFailed(completion.inst); ok {
			b.queue.Push(dncore.AddedEvent(record))
		}

		return
	}

	if record, ok := b.reconciler.Resolved(completion.inst, completion.res); ok {
		core.LogInf.Printf("dnssd-zeroconf: service added: id=%s %s\n", b.id, record)

		b.queue.Push(dncore.AddedEvent(record))
	}
}

// resolve looks up the host address of the entry which came without one.
func (b *browser) resolve(inst dncore.InstanceKey, res dncore.ResolveResult) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, b.params.resolveTimeout)
	defer cancel()

	completion := resolveCompletion{inst: inst, res: res}

	addr, err := b.params.resolver.Resolve(ctx, res.Host)
	if err != nil {
		completion.err = fmt.Errorf("dnssd-zeroconf: failed to resolve host: host=%q: %w",
			res.Host, err)
	} else if ip := sysnet.AddrIP(addr); ip != nil {
		completion.res.Addresses = []string{ip.String()}
	} else {
		completion.err = fmt.Errorf("dnssd-zeroconf: invalid address: host=%q addr=%v: %w",
			res.Host, addr, status.StatusInvalidArg)
	}

	select {
	case b.resolveCh <- completion:
	case <-b.ctx.Done():
	}
}

var _ dncore.Browser = (*browser)(nil)
