package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

type fakeBars struct {
	bars []marketdata.Bar
	err  error
	req  marketdata.GetBarsRequest
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func TestAlpacaFetchSuccess(t *testing.T) {
	day := time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)
	client := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: day.AddDate(0, 0, 1), Close: 11.5},
		{Timestamp: day, Close: 10},
	}}
	a := newAlpacaWithClient(AlpacaOptions{}, client, noopLogger())

	series, err := a.FetchSeries(context.Background(), "AAPL", testFrom, testTo)
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if series.Len() != 2 || !series.Observations[0].Close.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("应按日期升序返回: %#v", series.Observations)
	}
	if client.req.Adjustment != marketdata.Split {
		t.Fatalf("默认应使用 split 复权, 实际 %s", client.req.Adjustment)
	}
	if client.req.TimeFrame != marketdata.OneDay {
		t.Fatalf("应请求日线")
	}
}

func TestAlpacaKeepsZeroClose(t *testing.T) {
	day := time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)
	client := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: day, Close: 0},
		{Timestamp: day.AddDate(0, 0, 1), Close: 12},
	}}
	a := newAlpacaWithClient(AlpacaOptions{}, client, noopLogger())

	series, err := a.FetchSeries(context.Background(), "AAPL", testFrom, testTo)
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if series.Len() != 2 || !series.Observations[0].Close.IsZero() {
		t.Fatalf("零收盘不应被丢弃: %#v", series.Observations)
	}
}

func TestAlpacaFetchError(t *testing.T) {
	a := newAlpacaWithClient(AlpacaOptions{}, &fakeBars{err: errors.New("forbidden")}, noopLogger())
	if _, err := a.FetchSeries(context.Background(), "AAPL", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("客户端错误应视为数据不可用, 实际 %v", err)
	}
}

func TestAlpacaNoBars(t *testing.T) {
	a := newAlpacaWithClient(AlpacaOptions{}, &fakeBars{}, noopLogger())
	if _, err := a.FetchSeries(context.Background(), "AAPL", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("无数据应视为数据不可用, 实际 %v", err)
	}
}
