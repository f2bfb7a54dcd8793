package sysnet

import (
	"github.com/open-control-systems/dnssd-hub/components/core"
)

// InterfaceHandler handles changes of the host network addresses.
type InterfaceHandler interface {
	// HandleAddrAdded is called when a new address appears.
	HandleAddrAdded(addr InterfaceAddr)

	// HandleAddrRemoved is called when a known address disappears.
	HandleAddrRemoved(addr InterfaceAddr)
}

// InterfaceWatcher detects added and removed interface addresses.
//
// Remarks:
//   - Run() performs a single poll, it's supposed to be called periodically,
//     e.g. by syssched.AsyncTaskRunner.
//   - Changes are detected by the set difference against the previous poll.
//   - Removals are reported before additions, each group ordered by address key.
//   - Not safe for concurrent Run() calls.
type InterfaceWatcher struct {
	lister  InterfaceLister
	handler InterfaceHandler
	known   map[string]InterfaceAddr
}

// NewInterfaceWatcher is an initialization of InterfaceWatcher.
//
// Parameters:
//   - lister to list the host addresses.
//   - handler to be notified about the address changes.
func NewInterfaceWatcher(lister InterfaceLister, handler InterfaceHandler) *InterfaceWatcher {
	return &InterfaceWatcher{
		lister:  lister,
		handler: handler,
		known:   make(map[string]InterfaceAddr),
	}
}

// Run polls the host addresses and notifies about the changes.
func (w *InterfaceWatcher) Run() error {
	addrs, err := w.lister.ListAddrs()
	if err != nil {
		return err
	}

	current := make(map[string]InterfaceAddr, len(addrs))
	for _, addr := range addrs {
		current[addr.Key()] = addr
	}

	var removed []InterfaceAddr
	for key, addr := range w.known {
		if _, ok := current[key]; !ok {
			removed = append(removed, addr)
		}
	}

	var added []InterfaceAddr
	for key, addr := range current {
		if _, ok := w.known[key]; !ok {
			added = append(added, addr)
		}
	}

	sortInterfaceAddrs(removed)
	sortInterfaceAddrs(added)

	for _, addr := range removed {
		delete(w.known, addr.Key())

		core.LogDbg.Printf("interface-watcher: address removed: key=%s\n", addr.Key())
		w.handler.HandleAddrRemoved(addr)
	}

	for _, addr := range added {
		w.known[addr.Key()] = addr

		core.LogDbg.Printf("interface-watcher: address added: key=%s\n", addr.Key())
		w.handler.HandleAddrAdded(addr)
	}

	return nil
}

// HandleError handles polling errors.
func (*InterfaceWatcher) HandleError(err error) {
	core.LogErr.Printf("interface-watcher: failed to list interfaces: %v\n", err)
}
