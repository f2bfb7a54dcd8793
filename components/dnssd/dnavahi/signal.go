package dnavahi

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

const (
	signalItemNew        = serviceBrowserInterface + ".ItemNew"
	signalItemRemove     = serviceBrowserInterface + ".ItemRemove"
	signalFailure        = serviceBrowserInterface + ".Failure"
	signalAllForNow      = serviceBrowserInterface + ".AllForNow"
	signalCacheExhausted = serviceBrowserInterface + ".CacheExhausted"
)

// browseItem is the body of ItemNew and ItemRemove signals.
type browseItem struct {
	Interface   int32
	Protocol    int32
	Name        string
	ServiceType string
	Domain      string
	Flags       uint32
}

func parseBrowseItem(sig *dbus.Signal) (browseItem, error) {
	var item browseItem

	if err := dbus.Store(sig.Body,
		&item.Interface, &item.Protocol,
		&item.Name, &item.ServiceType, &item.Domain,
		&item.Flags,
	); err != nil {
		return browseItem{}, fmt.Errorf("dnssd-avahi: invalid signal: name=%s: %w: %w",
			sig.Name, status.StatusInvalidArg, err)
	}

	return item, nil
}

func parseFailure(sig *dbus.Signal) string {
	if len(sig.Body) > 0 {
		if msg, ok := sig.Body[0].(string); ok {
			return msg
		}
	}

	return "<none>"
}
