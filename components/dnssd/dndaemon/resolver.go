package dndaemon

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnwire"
	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

type dialFunc func(ctx context.Context) (*dnwire.Conn, error)

// resolver resolves a single service instance: the resolve request provides the
// target host, port and TXT record, the following address query provides the
// host address of the requested family.
type resolver struct {
	dial      dialFunc
	ipVersion dncore.IPVersion
}

func (r *resolver) resolve(
	ctx context.Context, inst dncore.InstanceKey, ifIndex uint32,
) (dncore.ResolveResult, error) {
	reply, err := r.resolveService(ctx, inst, ifIndex)
	if err != nil {
		return dncore.ResolveResult{}, err
	}

	addr, err := r.queryAddress(ctx, reply.HostTarget, ifIndex)
	if err != nil {
		return dncore.ResolveResult{}, err
	}

	return dncore.ResolveResult{
		Host:      reply.HostTarget,
		Port:      int(reply.Port),
		Addresses: []string{addr},
		Txt:       dncore.ParseTxtRecordBytes(reply.Txt),
	}, nil
}

func (r *resolver) resolveService(
	ctx context.Context, inst dncore.InstanceKey, ifIndex uint32,
) (*dnwire.ResolveReply, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Resolve(ctx, &dnwire.ResolveRequest{
		InterfaceIndex: ifIndex,
		Name:           inst.Name,
		ServiceType:    inst.ServiceType,
		Domain:         inst.Domain,
	}); err != nil {
		return nil, err
	}

	reply, err := conn.ReadResolveReply(ctx)
	if err != nil {
		return nil, err
	}

	if reply.Err != nil {
		return nil, reply.Err
	}

	return reply, nil
}

func (r *resolver) queryAddress(ctx context.Context, host string, ifIndex uint32) (string, error) {
	rrtype := dns.TypeA
	if r.ipVersion == dncore.IPv6 {
		rrtype = dns.TypeAAAA
	}

	conn, err := r.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.QueryRecord(ctx, &dnwire.QueryRequest{
		InterfaceIndex: ifIndex,
		FullName:       host,
		RRType:         rrtype,
		RRClass:        dns.ClassINET,
	}); err != nil {
		return "", err
	}

	for {
		reply, err := conn.ReadQueryReply(ctx)
		if err != nil {
			return "", err
		}

		if reply.Err != nil {
			return "", reply.Err
		}

		if !reply.Add() {
			continue
		}

		ip, err := recordIP(reply)
		if err != nil {
			return "", err
		}

		return sysnet.FormatIP(ip, int(ifIndex)), nil
	}
}

func recordIP(reply *dnwire.QueryReply) (net.IP, error) {
	rr, err := reply.RR()
	if err != nil {
		return nil, err
	}

	switch rec := rr.(type) {
	case *dns.A:
		return rec.A, nil
	case *dns.AAAA:
		return rec.AAAA, nil
	default:
		return nil, fmt.Errorf("dnssd-daemon: unexpected record: type=%s: %w",
			dns.TypeToString[reply.RRType], status.StatusInvalidArg)
	}
}
