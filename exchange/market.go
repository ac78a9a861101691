package exchange

import (
	"context"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/pkg/errors"
)

type marketEnvelope struct {
	MarketData *MarketData `json:"marketData"`
}

func (s *Service) MarketData(ctx context.Context, currency string) (*MarketData, error) {
	if !IsSupportedCrypto(currency) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedCurrency, "[exchange.MarketData] %q", currency)
	}
	data, err := querycache.Fetch(ctx, s.cache, querycache.Key(querycache.MarketData, currency), func(ctx context.Context) (*MarketData, error) {
		var out marketEnvelope
		if err := s.client.Get(ctx, PathMarket+"/"+currency, nil, &out); err != nil {
			return nil, err
		}
		if out.MarketData == nil {
			return nil, apperrors.ErrMalformedResult
		}
		return out.MarketData, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[exchange.MarketData] %s", currency)
	}
	return data, nil
}

// BuyOrders lists the active BUY orders of currency, best price first.
func (s *Service) BuyOrders(ctx context.Context, currency string) ([]Order, error) {
	return s.marketOrders(ctx, currency, "buy")
}

// SellOrders lists the active SELL orders of currency, best price first.
func (s *Service) SellOrders(ctx context.Context, currency string) ([]Order, error) {
	return s.marketOrders(ctx, currency, "sell")
}

func (s *Service) marketOrders(ctx context.Context, currency, side string) ([]Order, error) {
	if !IsSupportedCrypto(currency) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedCurrency, "[exchange.marketOrders] %q", currency)
	}
	var out ordersEnvelope
	if err := s.client.Get(ctx, PathMarket+"/"+currency+"/"+side, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.marketOrders] %s %s", currency, side)
	}
	return out.Orders, nil
}
