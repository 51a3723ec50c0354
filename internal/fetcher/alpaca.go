package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
)

// barsClient is the subset of the Alpaca market data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions parameterise the Alpaca daily bar fetcher.
type AlpacaOptions struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	Feed       string
	Adjustment string
}

// Alpaca fetches split-adjusted daily bars from Alpaca market data.
type Alpaca struct {
	opts   AlpacaOptions
	client barsClient
	logger zerolog.Logger
}

// NewAlpaca builds an Alpaca-backed provider.
func NewAlpaca(opts AlpacaOptions, logger zerolog.Logger) *Alpaca {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	return newAlpacaWithClient(opts, client, logger)
}

func newAlpacaWithClient(opts AlpacaOptions, client barsClient, logger zerolog.Logger) *Alpaca {
	return &Alpaca{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "alpaca_fetcher").Logger(),
	}
}

// FetchSeries retrieves daily closes for symbol. The lookup token is the ticker itself.
func (a *Alpaca) FetchSeries(ctx context.Context, token string, from, to time.Time) (cycle.Series, error) {
	if err := ctx.Err(); err != nil {
		return cycle.Series{}, err
	}

	bars, err := a.client.GetBars(token, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: adjustment(a.opts.Adjustment),
		Feed:       marketdata.Feed(a.opts.Feed),
		Start:      from,
		End:        to,
	})
	if err != nil {
		return cycle.Series{}, fmt.Errorf("%w: alpaca bars %s: %v", ErrDataUnavailable, token, err)
	}

	obs := make([]cycle.Observation, 0, len(bars))
	for _, bar := range bars {
		obs = append(obs, cycle.Observation{Date: bar.Timestamp, Close: decimal.NewFromFloat(bar.Close)})
	}

	series, err := normalise(token, obs)
	if err != nil {
		return cycle.Series{}, err
	}
	a.logger.Debug().Str("symbol", token).Int("observations", series.Len()).Msg("bars fetched")
	return series, nil
}

func adjustment(v string) marketdata.Adjustment {
	switch marketdata.Adjustment(v) {
	case marketdata.Raw, marketdata.Dividend, marketdata.All:
		return marketdata.Adjustment(v)
	default:
		return marketdata.Split
	}
}

var _ SeriesProvider = (*Alpaca)(nil)
