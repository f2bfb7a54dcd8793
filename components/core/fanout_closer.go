package core

import "go.uber.org/multierr"

// FanoutCloser propagates close call to the underlying closers.
//
// Remarks:
//   - Closers are closed in the reverse order of registration.
type FanoutCloser struct {
	closers []node
}

// Add closer with id to be notified when the close event is happened.
func (c *FanoutCloser) Add(id string, closer Closer) {
	c.closers = append(c.closers, node{id: id, c: closer})
}

// Close all registered closers, the combined error is returned.
func (c *FanoutCloser) Close() error {
	var err error

	for n := len(c.closers) - 1; n >= 0; n-- {
		node := c.closers[n]

		if e := node.c.Close(); e != nil {
			LogErr.Printf("fanout-closer: failed to close: id=%s err=%v\n", node.id, e)

			err = multierr.Append(err, e)
		}
	}

	c.closers = nil

	return err
}

type node struct {
	id string
	c  Closer
}
