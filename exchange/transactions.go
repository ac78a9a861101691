package exchange

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/pkg/errors"
)

func (s *Service) CreateTransaction(ctx context.Context, tx NewTransaction) (*Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, errors.Wrap(err, "[exchange.CreateTransaction]")
	}
	var out transactionEnvelope
	if err := s.client.Post(ctx, PathTransactions, tx, &out); err != nil {
		return nil, errors.Wrap(err, "[exchange.CreateTransaction]")
	}
	s.invalidate(querycache.UserTransactions, querycache.WalletBalances)
	if out.Transaction == nil {
		return nil, errors.Wrap(apperrors.ErrMalformedResult, "[exchange.CreateTransaction] missing transaction")
	}
	return out.Transaction, nil
}

// UserTransactions returns the caller's sent and received transactions.
func (s *Service) UserTransactions(ctx context.Context) (*UserTransactions, error) {
	txs, err := querycache.Fetch(ctx, s.cache, querycache.Key(querycache.UserTransactions), func(ctx context.Context) (*UserTransactions, error) {
		var out UserTransactions
		if err := s.client.Get(ctx, PathTransactions, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[exchange.UserTransactions]")
	}
	return txs, nil
}

func (s *Service) Transaction(ctx context.Context, id int64) (*Transaction, error) {
	var out transactionEnvelope
	if err := s.client.Get(ctx, fmt.Sprintf("%s/%d", PathTransactions, id), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.Transaction] %d", id)
	}
	if out.Transaction == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.Transaction] %d", id)
	}
	return out.Transaction, nil
}

// Trade fills part or all of another user's order.
func (s *Service) Trade(ctx context.Context, trade TradeRequest) (*TradeResult, error) {
	if err := trade.Validate(); err != nil {
		return nil, errors.Wrap(err, "[exchange.Trade]")
	}
	var out TradeResult
	if err := s.client.Post(ctx, PathTrade, trade, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.Trade] order %d", trade.OrderID)
	}
	s.invalidate(querycache.AllOrders, querycache.UserOrders, querycache.UserTransactions, querycache.WalletBalances)
	if out.Order == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.Trade] order %d: missing order", trade.OrderID)
	}
	return &out, nil
}
