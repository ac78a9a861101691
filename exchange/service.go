// Package exchange wraps the order, market, wallet and transaction endpoints
// of the exchange API. Reads go through an optional query cache; successful
// mutations invalidate the queries they change.
package exchange

import (
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API paths.
const (
	PathOrders       = "/api/orders"
	PathUserOrders   = "/api/orders/user"
	PathWallets      = "/api/wallets"
	PathWalletTopUp  = "/api/wallets/balance"
	PathTransfer     = "/api/wallets/transfer"
	PathTransactions = "/api/transactions"
	PathTrade        = "/api/transactions/trade"
	PathMarket       = "/api/market"
)

type Service struct {
	client *transport.Client
	cache  *querycache.Cache
	log    zerolog.Logger
}

// Option defines a function type to modify the Service instance.
type Option func(*Service)

// WithCache serves reads from cache. Without it every read hits the API.
func WithCache(cache *querycache.Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

func NewService(client *transport.Client, opts ...Option) *Service {
	s := &Service{client: client, log: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) invalidate(names ...string) {
	if s.cache != nil {
		s.cache.Invalidate(names...)
	}
}
