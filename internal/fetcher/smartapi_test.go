package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testSession() *Session {
	return &Session{APIKey: "key", ClientCode: "C1", JWTToken: "jwt"}
}

var (
	testFrom = time.Date(2000, 1, 1, 9, 15, 0, 0, time.UTC)
	testTo   = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
)

func TestSmartAPIMissingSession(t *testing.T) {
	s := NewSmartAPI(SmartAPIOptions{}, nil, noopLogger())
	if _, err := s.FetchSeries(context.Background(), "3045", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("缺少会话时应返回 ErrDataUnavailable, 实际 %v", err)
	}
}

func TestSmartAPIMissingToken(t *testing.T) {
	s := NewSmartAPI(SmartAPIOptions{}, testSession(), noopLogger())
	if _, err := s.FetchSeries(context.Background(), "", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("缺少 token 时应视为数据不可用, 实际 %v", err)
	}
}

func TestSmartAPIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid Token", "errorcode": "AG8001"})
	}))
	defer srv.Close()

	s := NewSmartAPI(SmartAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, testSession(), noopLogger())
	_, err := s.FetchSeries(context.Background(), "3045", testFrom, testTo)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("HTTP 401 应视为数据不可用, 实际 %v", err)
	}
}

func TestSmartAPIStatusFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "No data", "errorcode": "AB1004"})
	}))
	defer srv.Close()

	s := NewSmartAPI(SmartAPIOptions{BaseURL: srv.URL}, testSession(), noopLogger())
	if _, err := s.FetchSeries(context.Background(), "3045", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("status=false 应视为数据不可用, 实际 %v", err)
	}
}

func TestSmartAPIEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "data": []any{}})
	}))
	defer srv.Close()

	s := NewSmartAPI(SmartAPIOptions{BaseURL: srv.URL}, testSession(), noopLogger())
	if _, err := s.FetchSeries(context.Background(), "3045", testFrom, testTo); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("空数据应视为数据不可用, 实际 %v", err)
	}
}

func TestSmartAPIFetchSuccess(t *testing.T) {
	var got candleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != candlePath {
			t.Fatalf("路径不正确: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer jwt" || r.Header.Get("X-PrivateKey") != "key" {
			t.Fatalf("认证头不正确: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"SUCCESS","errorcode":"","data":[
			["2024-01-03T00:00:00+05:30",101,103,100,102.5,1200],
			["2024-01-02T00:00:00+05:30",100,101,99,100.25,1000],
			["2024-01-03T00:00:00+05:30",101,104,100,103,1300],
			["2024-01-04T00:00:00+05:30",0,0,0,0,0]
		]}`))
	}))
	defer srv.Close()

	s := NewSmartAPI(SmartAPIOptions{BaseURL: srv.URL, Timeout: time.Second}, testSession(), noopLogger())
	series, err := s.FetchSeries(context.Background(), "3045", testFrom, testTo)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}

	if got.Exchange != "NSE" || got.Interval != "ONE_DAY" || got.SymbolToken != "3045" {
		t.Fatalf("请求参数不正确: %#v", got)
	}
	if got.FromDate != "2000-01-01 09:15" || got.ToDate != "2026-10-19 15:30" {
		t.Fatalf("日期格式不正确: %#v", got)
	}

	if series.Len() != 3 {
		t.Fatalf("期望 3 条观测 (去重, 零收盘保留), 实际 %d", series.Len())
	}
	if !series.Observations[0].Close.Equal(decimal.RequireFromString("100.25")) {
		t.Fatalf("应按日期升序, 实际首条 %s", series.Observations[0].Close)
	}
	if !series.Observations[1].Close.Equal(decimal.NewFromInt(103)) {
		t.Fatalf("重复日期应保留最后一条, 实际 %s", series.Observations[1].Close)
	}
	if !series.Observations[2].Close.IsZero() {
		t.Fatalf("零收盘应原样保留, 实际 %s", series.Observations[2].Close)
	}
}
