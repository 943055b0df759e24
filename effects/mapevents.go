package effects

import (
	"maps"
	"slices"
)

// EventMap routes each source event name to one or more target event names.
type EventMap map[string][]string

// MapEvents returns a source that bridges events: for every entry it subscribes
// a handler re-emitting the received arguments under each target name.
// The source resolves to the []Subscription it created, in sorted source-name order.
func MapEvents(table EventMap) Source {
	routes := make(EventMap, len(table))
	for from, to := range table {
		routes[from] = slices.Clone(to)
	}

	return func(co *Co, _ ...any) (any, error) {
		subs := make([]Subscription, 0, len(routes))
		for _, from := range slices.Sorted(maps.Keys(routes)) {
			sub, err := Listen(co, from, NewHandler(relay(routes[from])))
			if err != nil {
				return subs, err
			}
			subs = append(subs, sub)
		}
		return subs, nil
	}
}

func relay(targets []string) Source {
	return func(co *Co, args ...any) (any, error) {
		for _, to := range targets {
			if _, err := co.Yield(Emit(to, args...)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}
