package bus

import (
	"fmt"
	"reflect"
)

// RestrictedView pins a channel to the exact set of types it is allowed
// to post on the market bus — spec.md §4.10's "restricted bus view",
// used e.g. to keep cmd/gatewayd's upstream channels from posting
// anything but LoginRequest/Order/ChannelStatusEvent. Go has no
// compile-time rejection of an arbitrary type set the way a templated
// allowed-list does, so the check happens at construction (allowed types
// are fixed for the view's lifetime) and at Post (a disallowed type
// panics immediately rather than silently routing) — a caller violates
// its channel's contract only through a programming error, and that
// error surfaces at the first offending call.
type RestrictedView struct {
	hub     *Hub
	allowed map[reflect.Type]struct{}
}

// NewRestrictedView builds a view over hub that only allows posting the
// types present in allowed (pass zero values, e.g. wire.Order{}).
func NewRestrictedView(hub *Hub, allowed ...any) *RestrictedView {
	set := make(map[reflect.Type]struct{}, len(allowed))
	for _, a := range allowed {
		set[reflect.TypeOf(a)] = struct{}{}
	}
	return &RestrictedView{hub: hub, allowed: set}
}

// Post posts msg on the underlying hub's market bus, panicking if msg's
// type is not in this view's allowed set.
func (v *RestrictedView) Post(msg any) {
	t := reflect.TypeOf(msg)
	if _, ok := v.allowed[t]; !ok {
		panic(fmt.Sprintf("bus: restricted view does not allow posting %s", t))
	}
	v.hub.marketMu.RLock()
	handler, ok := v.hub.marketHandlers[t]
	v.hub.marketMu.RUnlock()
	if ok {
		handler(msg)
	}
}

// Allows reports whether msg's type may be posted through this view.
func (v *RestrictedView) Allows(msg any) bool {
	_, ok := v.allowed[reflect.TypeOf(msg)]
	return ok
}
