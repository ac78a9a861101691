package exchange

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/pkg/errors"
)

type orderEnvelope struct {
	Message string `json:"message,omitempty"`
	Order   *Order `json:"order"`
}

type ordersEnvelope struct {
	Orders []Order `json:"orders"`
}

// CreateOrder places a new order. A SELL order is checked against the
// caller's balance first.
func (s *Service) CreateOrder(ctx context.Context, order NewOrder) (*Order, error) {
	if err := order.Validate(); err != nil {
		return nil, errors.Wrap(err, "[exchange.CreateOrder]")
	}
	if order.Type == OrderSell {
		if available := s.Balances(ctx)[order.Currency]; available < order.Amount {
			return nil, errors.Wrapf(apperrors.ErrInsufficientBalance, "[exchange.CreateOrder] %s %s available",
				FormatCryptoAmount(available, order.Currency), order.Currency)
		}
	}

	var out orderEnvelope
	if err := s.client.Post(ctx, PathOrders, order, &out); err != nil {
		return nil, errors.Wrap(err, "[exchange.CreateOrder]")
	}
	s.invalidate(querycache.AllOrders, querycache.UserOrders)
	if out.Order == nil {
		return nil, errors.Wrap(apperrors.ErrMalformedResult, "[exchange.CreateOrder] missing order")
	}
	return out.Order, nil
}

// AllOrders lists the order book, narrowed by filter.
func (s *Service) AllOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	key := querycache.Key(querycache.AllOrders, filter.params()...)
	orders, err := querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]Order, error) {
		var out ordersEnvelope
		if err := s.client.Get(ctx, PathOrders, filter.Values(), &out); err != nil {
			return nil, err
		}
		return out.Orders, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[exchange.AllOrders]")
	}
	return orders, nil
}

// UserOrders lists the caller's own orders in every status.
func (s *Service) UserOrders(ctx context.Context) ([]Order, error) {
	orders, err := querycache.Fetch(ctx, s.cache, querycache.Key(querycache.UserOrders), func(ctx context.Context) ([]Order, error) {
		var out ordersEnvelope
		if err := s.client.Get(ctx, PathUserOrders, nil, &out); err != nil {
			return nil, err
		}
		return out.Orders, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[exchange.UserOrders]")
	}
	return orders, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(apperrors.ErrInvalidOrder, "[exchange.UpdateOrderStatus] status %q", status)
	}
	path := fmt.Sprintf("%s/%d/status", PathOrders, id)

	var out orderEnvelope
	if err := s.client.Put(ctx, path, map[string]OrderStatus{"status": status}, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.UpdateOrderStatus] order %d", id)
	}
	s.invalidate(querycache.UserOrders, querycache.AllOrders)
	if out.Order == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.UpdateOrderStatus] order %d: missing order", id)
	}
	return out.Order, nil
}

func (s *Service) CancelOrder(ctx context.Context, id int64) (*Order, error) {
	path := fmt.Sprintf("%s/%d/cancel", PathOrders, id)

	var out orderEnvelope
	if err := s.client.DoJSON(ctx, transport.NewRequest(http.MethodPut, path), &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.CancelOrder] order %d", id)
	}
	s.invalidate(querycache.UserOrders, querycache.AllOrders)
	if out.Order == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.CancelOrder] order %d: missing order", id)
	}
	return out.Order, nil
}
