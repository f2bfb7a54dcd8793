package dncore

import "context"

// Browser is a single browse session.
//
// Life-cycle: created -> started -> stopped/destroyed.
type Browser interface {
	// ID returns the browser identifier, used for logging.
	ID() string

	// Events returns the channel of added, removed and error events.
	//
	// Remarks:
	//   - The channel is closed when the browser is destroyed.
	//   - After EventError with Fatal flag set no more events are delivered,
	//     the caller is expected to call Destroy().
	Events() <-chan Event

	// Start begins browsing.
	//
	// Remarks:
	//   - Returns status.StatusInvalidState if the browser was already started or stopped.
	Start() error

	// Stop ends browsing, the browser can't be restarted.
	Stop() error

	// Destroy stops browsing, releases all resources and closes the events channel.
	Destroy() error
}

// Client creates browse sessions over a single discovery backend.
type Client interface {
	// Browse creates a new browser for the provided options.
	//
	// Remarks:
	//   - The browser is ready to be started when returned.
	//   - The call fails if the backend rejects the browse request.
	Browse(ctx context.Context, opts BrowseOptions) (Browser, error)

	// Destroy destroys all browsers created by the client and releases backend resources.
	Destroy() error
}
