package exchange

import (
	"context"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/pkg/errors"
)

type walletEnvelope struct {
	Wallet *Wallet `json:"wallet"`
}

type walletsEnvelope struct {
	Wallets []Wallet `json:"wallets"`
}

type transactionEnvelope struct {
	Transaction *Transaction `json:"transaction"`
}

// Wallets lists the caller's wallets.
func (s *Service) Wallets(ctx context.Context) ([]Wallet, error) {
	wallets, err := querycache.Fetch(ctx, s.cache, querycache.Key(querycache.WalletBalances, querycache.Wallets), func(ctx context.Context) ([]Wallet, error) {
		var out walletsEnvelope
		if err := s.client.Get(ctx, PathWallets, nil, &out); err != nil {
			return nil, err
		}
		return out.Wallets, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[exchange.Wallets]")
	}
	return wallets, nil
}

func (s *Service) Wallet(ctx context.Context, currency string) (*Wallet, error) {
	if !IsSupportedCrypto(currency) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedCurrency, "[exchange.Wallet] %q", currency)
	}
	var out walletEnvelope
	if err := s.client.Get(ctx, PathWallets+"/"+currency, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.Wallet] %s", currency)
	}
	if out.Wallet == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.Wallet] %s", currency)
	}
	return out.Wallet, nil
}

// Balances maps every supported coin to the caller's balance. Coins without a
// wallet read 0, and any failure yields the all-zero map.
func (s *Service) Balances(ctx context.Context) map[string]float64 {
	balances := make(map[string]float64, len(CryptoCurrencies))
	for _, c := range CryptoCurrencies {
		balances[c.Code] = 0
	}

	wallets, err := s.Wallets(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetching balances failed")
		return balances
	}
	for _, w := range wallets {
		balances[w.Currency] = w.Balance
	}
	return balances
}

func (s *Service) CreateWallet(ctx context.Context, currency string) (*Wallet, error) {
	if !IsSupportedCrypto(currency) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedCurrency, "[exchange.CreateWallet] %q", currency)
	}
	var out walletEnvelope
	if err := s.client.Post(ctx, PathWallets, NewWallet{Currency: currency}, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.CreateWallet] %s", currency)
	}
	s.invalidate(querycache.WalletBalances)
	if out.Wallet == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.CreateWallet] %s: missing wallet", currency)
	}
	return out.Wallet, nil
}

func (s *Service) UpdateWalletBalance(ctx context.Context, update BalanceUpdate) (*Wallet, error) {
	if !IsSupportedCrypto(update.Currency) {
		return nil, errors.Wrapf(apperrors.ErrUnsupportedCurrency, "[exchange.UpdateWalletBalance] %q", update.Currency)
	}
	var out walletEnvelope
	if err := s.client.Put(ctx, PathWalletTopUp, update, &out); err != nil {
		return nil, errors.Wrapf(err, "[exchange.UpdateWalletBalance] %s", update.Currency)
	}
	s.invalidate(querycache.WalletBalances)
	if out.Wallet == nil {
		return nil, errors.Wrapf(apperrors.ErrMalformedResult, "[exchange.UpdateWalletBalance] %s: missing wallet", update.Currency)
	}
	return out.Wallet, nil
}

// TransferFunds sends funds to another user or an external address after
// checking the caller can cover the amount.
func (s *Service) TransferFunds(ctx context.Context, transfer Transfer) (*Transaction, error) {
	if err := transfer.Validate(); err != nil {
		return nil, errors.Wrap(err, "[exchange.TransferFunds]")
	}
	if available := s.Balances(ctx)[transfer.Currency]; transfer.Amount > available {
		return nil, errors.Wrapf(apperrors.ErrInsufficientBalance, "[exchange.TransferFunds] %s %s available",
			FormatCryptoAmount(available, transfer.Currency), transfer.Currency)
	}

	var out transactionEnvelope
	if err := s.client.Post(ctx, PathTransfer, transfer, &out); err != nil {
		return nil, errors.Wrap(err, "[exchange.TransferFunds]")
	}
	s.invalidate(querycache.UserTransactions, querycache.WalletBalances)
	if out.Transaction == nil {
		return nil, errors.Wrap(apperrors.ErrMalformedResult, "[exchange.TransferFunds] missing transaction")
	}
	return out.Transaction, nil
}
