package pricer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pricefeed/internal/domain"
	"golang.org/x/time/rate"
)

// DefaultQuote is the quote currency used to build exchange symbols.
const DefaultQuote = "USDT"

// tickerFunc returns the last traded price of an exchange symbol.
type tickerFunc func(ctx context.Context, symbol string) (string, error)

// ExchangeSource serves the custom tier from a centralized exchange ticker.
type ExchangeSource struct {
	name       string
	quote      string
	ticker     tickerFunc
	symbol     func(asset, quote string) string
	confidence float64
	limiter    *rate.Limiter
	now        func() time.Time
}

func newExchangeSource(name, quote string, confidence float64, limiter *rate.Limiter, ticker tickerFunc) *ExchangeSource {
	if quote == "" {
		quote = DefaultQuote
	}
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultCustomConfidence
	}
	return &ExchangeSource{
		name:       name,
		quote:      strings.ToUpper(quote),
		ticker:     ticker,
		symbol:     func(asset, quote string) string { return asset + quote },
		confidence: confidence,
		limiter:    limiter,
		now:        time.Now,
	}
}

func (s *ExchangeSource) Name() string        { return s.name }
func (s *ExchangeSource) Kind() domain.Source { return domain.SourceCustom }

// FetchPrice reads the exchange ticker for asset, {asset}{quote} unless the venue keys by coin. The quote asset itself is priced at 1.
func (s *ExchangeSource) FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error) {
	if asset == s.quote {
		return domain.NewPriceRecord(asset, decimal.NewFromInt(1), s.now(), domain.SourceCustom, s.confidence), nil
	}

	if err := wait(ctx, s.limiter); err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "%s rate limiter", s.name)
	}

	symbol := s.symbol(asset, s.quote)
	last, err := s.ticker(ctx, symbol)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "%s ticker %s", s.name, symbol)
	}

	price, err := decimal.NewFromString(last)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "decode %s price %q", s.name, last)
	}
	if !price.IsPositive() {
		return domain.PriceRecord{}, fmt.Errorf("%s returned non positive price for %s", s.name, symbol)
	}

	return domain.NewPriceRecord(asset, price, s.now(), domain.SourceCustom, s.confidence), nil
}
