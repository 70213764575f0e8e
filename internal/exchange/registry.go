// Package exchange provides the per-venue client registry and the default
// signed-REST client used for order submission and metadata refresh.
package exchange

import (
	"github.com/quanthawk/arbot/internal/domain"
)

// Registry maps exchange identifiers to their client implementation. Only
// enabled exchanges are registered; lookups for anything else fail, which
// callers treat as "venue not tradable".
type Registry struct {
	clients map[domain.Exchange]domain.ExchangeClient
}

// NewRegistry builds a Registry from the given clients.
func NewRegistry(clients ...domain.ExchangeClient) *Registry {
	m := make(map[domain.Exchange]domain.ExchangeClient, len(clients))
	for _, c := range clients {
		m[c.Exchange()] = c
	}
	return &Registry{clients: m}
}

// Client returns the client for the exchange, if registered.
func (r *Registry) Client(exchange domain.Exchange) (domain.ExchangeClient, bool) {
	c, ok := r.clients[exchange]
	return c, ok
}

// All returns every registered client.
func (r *Registry) All() []domain.ExchangeClient {
	out := make([]domain.ExchangeClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}
