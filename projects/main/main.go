package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dndispatch"
)

type browseFlags struct {
	service      string
	transport    string
	ip           string
	backend      string
	socket       string
	pollInterval time.Duration
	verbose      bool
}

func main() {
	if err := core.SetLogFile(os.Getenv("DNSSD_LOG_PATH")); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to setup log file: ", err)
	}

	var flags browseFlags

	cmd := &cobra.Command{
		Use:          "dnssd-browse",
		Short:        "Browse DNS-SD services on the local network",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.service, "service", "",
		"Service name without the leading underscore, e.g. sftp-ssh")
	cmd.Flags().StringVar(&flags.transport, "transport", "tcp", "Service transport: tcp, udp")
	cmd.Flags().StringVar(&flags.ip, "ip", "4", "Address family of the resolved addresses: 4, 6")
	cmd.Flags().StringVar(&flags.backend, "backend", string(dndispatch.BackendAuto),
		"Discovery backend: auto, daemon, avahi, zeroconf")
	cmd.Flags().StringVar(&flags.socket, "socket", "",
		"Native mDNS daemon socket path")
	cmd.Flags().DurationVar(&flags.pollInterval, "poll-interval", 0,
		"How often the zeroconf backend checks the network interfaces")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")

	_ = cmd.MarkFlagRequired("service")

	appContext, cancelFunc := signal.NotifyContext(context.Background(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer cancelFunc()

	if err := cmd.ExecuteContext(appContext); err != nil {
		cancelFunc()
		os.Exit(1)
	}
}

func runBrowse(ctx context.Context, flags browseFlags) error {
	core.SetVerbose(flags.verbose)

	opts, err := makeBrowseOptions(flags)
	if err != nil {
		return err
	}

	params, err := makeDispatcherParams(flags)
	if err != nil {
		return err
	}

	fanoutCloser := &core.FanoutCloser{}
	defer fanoutCloser.Close()

	dispatcher := dndispatch.NewDispatcher(params)
	fanoutCloser.Add("dnssd-dispatcher", dispatcher)

	client, err := dispatcher.GetInstance(ctx)
	if err != nil {
		return err
	}

	browser, err := client.Browse(ctx, opts)
	if err != nil {
		return err
	}
	fanoutCloser.Add("dnssd-browser", core.FuncCloser(browser.Destroy))

	if err := browser.Start(); err != nil {
		return err
	}

	core.LogInf.Printf("dnssd-browse: browsing: type=%s ip=%s backend=%s\n",
		opts.ServiceType(), opts.IPVersion, dispatcher.Backend())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-browser.Events():
			if !ok {
				return nil
			}

			printEvent(event)

			if event.Type == dncore.EventError && event.Fatal {
				return event.Err
			}
		}
	}
}

func makeBrowseOptions(flags browseFlags) (dncore.BrowseOptions, error) {
	transport, err := dncore.ParseTransport(flags.transport)
	if err != nil {
		return dncore.BrowseOptions{}, err
	}

	ipVersion, err := dncore.ParseIPVersion(flags.ip)
	if err != nil {
		return dncore.BrowseOptions{}, err
	}

	opts := dncore.BrowseOptions{
		Service:   flags.service,
		Transport: transport,
		IPVersion: ipVersion,
	}

	if err := opts.Validate(); err != nil {
		return dncore.BrowseOptions{}, err
	}

	return opts, nil
}

func makeDispatcherParams(flags browseFlags) (dndispatch.Params, error) {
	backend, err := dndispatch.ParseBackend(flags.backend)
	if err != nil {
		return dndispatch.Params{}, err
	}

	params := dndispatch.DefaultParams()
	params.Backend = backend

	if flags.socket != "" {
		params.Daemon.Dial.SocketPath = flags.socket
	}
	if flags.pollInterval > 0 {
		params.Zeroconf.PollInterval = flags.pollInterval
	}

	return params, nil
}

func printEvent(event dncore.Event) {
	switch event.Type {
	case dncore.EventAdded, dncore.EventRemoved:
		fmt.Printf("%s %s\n", event.Type, event.Record)
	case dncore.EventError:
		fmt.Printf("%s fatal=%t err=%v\n", event.Type, event.Fatal, event.Err)
	}
}
