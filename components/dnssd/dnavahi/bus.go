package dnavahi

import (
	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	avahiService            = "org.freedesktop.Avahi"
	serverInterface         = "org.freedesktop.Avahi.Server"
	serviceBrowserInterface = "org.freedesktop.Avahi.ServiceBrowser"
)

// Avahi interface and protocol values.
const (
	InterfaceUnspec int32 = -1

	ProtoInet  int32 = 0
	ProtoInet6 int32 = 1
)

// Bus is the subset of the Avahi D-Bus API used for browsing.
type Bus interface {
	// Subscribe starts delivery of the service browser signals to ch.
	Subscribe(ch chan *dbus.Signal) error

	// Unsubscribe stops delivery of the service browser signals to ch.
	Unsubscribe(ch chan *dbus.Signal) error

	// ServiceBrowserNew creates a new service browser object.
	ServiceBrowserNew(
		iface, proto int32, serviceType, domain string, flags uint32,
	) (dbus.ObjectPath, error)

	// ServiceBrowserFree releases the service browser object.
	ServiceBrowserFree(path dbus.ObjectPath) error

	// ResolveService resolves the service instance, blocks until resolved.
	ResolveService(
		iface, proto int32, name, serviceType, domain string, aproto int32, flags uint32,
	) (avahi.Service, error)

	// Close releases the bus connection.
	Close() error
}

// DBusBus implements Bus over the system bus connection.
type DBusBus struct {
	conn   *dbus.Conn
	server *avahi.Server
}

// NewDBusBus is an initialization of DBusBus.
//
// Parameters:
//   - conn - system bus connection, owned by DBusBus.
func NewDBusBus(conn *dbus.Conn) (*DBusBus, error) {
	server, err := avahi.ServerNew(conn)
	if err != nil {
		return nil, err
	}

	return &DBusBus{
		conn:   conn,
		server: server,
	}, nil
}

// Subscribe adds the signal match rule and registers ch.
func (b *DBusBus) Subscribe(ch chan *dbus.Signal) error {
	if err := b.conn.AddMatchSignal(
		dbus.WithMatchInterface(serviceBrowserInterface),
	); err != nil {
		return err
	}

	b.conn.Signal(ch)

	return nil
}

// Unsubscribe unregisters ch and removes the signal match rule.
func (b *DBusBus) Unsubscribe(ch chan *dbus.Signal) error {
	b.conn.RemoveSignal(ch)

	return b.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(serviceBrowserInterface),
	)
}

// ServiceBrowserNew calls org.freedesktop.Avahi.Server.ServiceBrowserNew.
func (b *DBusBus) ServiceBrowserNew(
	iface, proto int32, serviceType, domain string, flags uint32,
) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath

	err := b.conn.Object(avahiService, "/").Call(serverInterface+".ServiceBrowserNew", 0,
		iface, proto, serviceType, domain, flags).Store(&path)

	return path, err
}

// ServiceBrowserFree calls org.freedesktop.Avahi.ServiceBrowser.Free.
func (b *DBusBus) ServiceBrowserFree(path dbus.ObjectPath) error {
	return b.conn.Object(avahiService, path).Call(serviceBrowserInterface+".Free", 0).Err
}

// ResolveService calls org.freedesktop.Avahi.Server.ResolveService.
func (b *DBusBus) ResolveService(
	iface, proto int32, name, serviceType, domain string, aproto int32, flags uint32,
) (avahi.Service, error) {
	return b.server.ResolveService(iface, proto, name, serviceType, domain, aproto, flags)
}

// Close closes the bus connection.
func (b *DBusBus) Close() error {
	b.server.Close()

	return b.conn.Close()
}
