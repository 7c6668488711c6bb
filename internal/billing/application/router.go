package application

import (
	"strings"

	billing "billing-relay/internal/billing/domain"
)

// Router batches composite documents by destination address.
type Router struct {
	routes map[string]string
	order  []string
	groups map[string]*billing.DestinationGroup
}

// NewRouter builds a router from a source key -> destination mapping.
func NewRouter(routes map[string]string) *Router {
	clean := make(map[string]string, len(routes))
	for key, dest := range routes {
		dest = strings.TrimSpace(dest)
		if key == "" || dest == "" {
			continue
		}
		clean[key] = dest
	}
	return &Router{routes: clean, groups: make(map[string]*billing.DestinationGroup)}
}

// RoutesFromSources builds the routing table from configured sources.
func RoutesFromSources(sources []billing.Source) map[string]string {
	routes := make(map[string]string, len(sources))
	for _, src := range sources {
		routes[src.Key] = src.Destination
	}
	return routes
}

// Destination returns the address a source routes to.
func (r *Router) Destination(sourceKey string) (string, bool) {
	dest, ok := r.routes[sourceKey]
	return dest, ok
}

// Add appends doc to its destination group. It reports false when the
// source has no destination.
func (r *Router) Add(doc billing.CompositeDocument) bool {
	dest, ok := r.routes[doc.SourceKey]
	if !ok {
		return false
	}
	group, ok := r.groups[dest]
	if !ok {
		group = &billing.DestinationGroup{Destination: dest}
		r.groups[dest] = group
		r.order = append(r.order, dest)
	}
	group.Documents = append(group.Documents, doc)
	return true
}

// Groups returns the non-empty groups in first-seen order.
func (r *Router) Groups() []billing.DestinationGroup {
	out := make([]billing.DestinationGroup, 0, len(r.order))
	for _, dest := range r.order {
		group := r.groups[dest]
		if group == nil || len(group.Documents) == 0 {
			continue
		}
		out = append(out, *group)
	}
	return out
}
