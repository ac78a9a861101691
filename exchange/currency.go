package exchange

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type CryptoCurrency struct {
	Code string
	Name string
}

type FiatCurrency struct {
	Code   string
	Name   string
	Symbol string
}

// CryptoCurrencies are the coins the exchange trades, in display order.
var CryptoCurrencies = []CryptoCurrency{
	{Code: "BTC", Name: "Bitcoin"},
	{Code: "ETH", Name: "Ethereum"},
	{Code: "XRP", Name: "Ripple"},
	{Code: "DOGE", Name: "Dogecoin"},
}

var FiatCurrencies = []FiatCurrency{
	{Code: "THB", Name: "Thai Baht", Symbol: "฿ "},
	{Code: "USD", Name: "US Dollar", Symbol: "$ "},
}

const DefaultFiat = "THB"

var printer = message.NewPrinter(language.English)

func SupportedCryptoCodes() []string {
	codes := make([]string, len(CryptoCurrencies))
	for i, c := range CryptoCurrencies {
		codes[i] = c.Code
	}
	return codes
}

func IsSupportedCrypto(code string) bool {
	for _, c := range CryptoCurrencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

func IsSupportedFiat(code string) bool {
	_, ok := fiat(code)
	return ok
}

func fiat(code string) (FiatCurrency, bool) {
	for _, f := range FiatCurrencies {
		if f.Code == code {
			return f, true
		}
	}
	return FiatCurrency{}, false
}

// NormalizeCurrency upper-cases and trims a user supplied currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CryptoDecimals is 8 for BTC and 6 for every other coin.
func CryptoDecimals(currency string) int {
	if currency == "BTC" {
		return 8
	}
	return 6
}

// FormatCryptoAmount groups thousands and pads to the coin's decimals.
func FormatCryptoAmount(amount float64, currency string) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", CryptoDecimals(currency)), amount)
}

// FormatCurrency prefixes the fiat symbol, when known, to a two decimal amount.
func FormatCurrency(amount float64, currency string) string {
	symbol := ""
	if f, ok := fiat(currency); ok {
		symbol = f.Symbol
	}
	return symbol + printer.Sprintf("%.2f", amount)
}
