package dncore

import (
	"sync"

	"go.uber.org/multierr"
)

// BrowserSet tracks browsers created by a client.
//
// Remarks:
//   - Safe for concurrent use.
type BrowserSet struct {
	mu       sync.Mutex
	browsers map[string]Browser
	closed   bool
}

// Add adds the browser to the set.
//
// Returns false if the set is already destroyed.
func (s *BrowserSet) Add(browser Browser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if s.browsers == nil {
		s.browsers = make(map[string]Browser)
	}

	s.browsers[browser.ID()] = browser

	return true
}

// Remove removes the browser from the set.
func (s *BrowserSet) Remove(browser Browser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.browsers, browser.ID())
}

// Len returns the number of tracked browsers.
func (s *BrowserSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.browsers)
}

// Destroy destroys all tracked browsers, no browsers can be added afterwards.
func (s *BrowserSet) Destroy() error {
	s.mu.Lock()
	s.closed = true
	browsers := s.browsers
	s.browsers = nil
	s.mu.Unlock()

	var err error
	for _, browser := range browsers {
		err = multierr.Append(err, browser.Destroy())
	}

	return err
}
