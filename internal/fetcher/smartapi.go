package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
)

const (
	candlePath       = "/rest/secure/angelbroking/historical/v1/getCandleData"
	candleTimeLayout = "2006-01-02 15:04"
	defaultBaseURL   = "https://apiconnect.angelbroking.com"
)

// SmartAPIOptions parameterise the brokerage candle fetcher.
type SmartAPIOptions struct {
	BaseURL    string
	Exchange   string
	Interval   string
	Timeout    time.Duration
	UserAgent  string
	LocalIP    string
	PublicIP   string
	MACAddress string
}

// SmartAPI fetches daily candles from the brokerage historical data endpoint.
type SmartAPI struct {
	opts    SmartAPIOptions
	session *Session
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSmartAPI constructs a candle fetcher bound to an externally owned session.
func NewSmartAPI(opts SmartAPIOptions, session *Session, logger zerolog.Logger) *SmartAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if opts.Exchange == "" {
		opts.Exchange = "NSE"
	}
	if opts.Interval == "" {
		opts.Interval = "ONE_DAY"
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &SmartAPI{
		opts:    opts,
		session: session,
		logger:  logger.With().Str("component", "smartapi_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSeries retrieves closes for token between from and to (inclusive).
func (s *SmartAPI) FetchSeries(ctx context.Context, token string, from, to time.Time) (cycle.Series, error) {
	if token == "" {
		return cycle.Series{}, fmt.Errorf("%w: symbol token required", ErrDataUnavailable)
	}
	if !s.session.Valid() {
		return cycle.Series{}, fmt.Errorf("%w: brokerage session not established", ErrDataUnavailable)
	}

	payload := candleRequest{
		Exchange:    s.opts.Exchange,
		SymbolToken: token,
		Interval:    s.opts.Interval,
		FromDate:    from.Format(candleTimeLayout),
		ToDate:      to.Format(candleTimeLayout),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return cycle.Series{}, fmt.Errorf("marshal candle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+candlePath, bytes.NewReader(body))
	if err != nil {
		return cycle.Series{}, fmt.Errorf("create candle request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cycle.Series{}, ctx.Err()
		}
		return cycle.Series{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cycle.Series{}, fmt.Errorf("%w: read candle response: %v", ErrDataUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return cycle.Series{}, fmt.Errorf("%w: %v", ErrDataUnavailable, parseHTTPError(resp.StatusCode, raw))
	}

	var res candleResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return cycle.Series{}, fmt.Errorf("%w: decode candle response: %v", ErrDataUnavailable, err)
	}
	if !res.Status {
		return cycle.Series{}, fmt.Errorf("%w: smartapi %s %s", ErrDataUnavailable, res.ErrorCode, res.Message)
	}

	series, err := candlesToSeries(token, res.Data)
	if err != nil {
		return cycle.Series{}, err
	}

	s.logger.Debug().Str("token", token).Int("observations", series.Len()).Msg("candles fetched")
	return series, nil
}

func (s *SmartAPI) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.session.JWTToken)
	req.Header.Set("X-PrivateKey", s.session.APIKey)
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", fallback(s.opts.LocalIP, "127.0.0.1"))
	req.Header.Set("X-ClientPublicIP", fallback(s.opts.PublicIP, "127.0.0.1"))
	req.Header.Set("X-MACAddress", fallback(s.opts.MACAddress, "00:00:00:00:00:00"))
	req.Header.Set("User-Agent", fallback(strings.TrimSpace(s.opts.UserAgent), "cyclescan/1.0"))
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// candlesToSeries sorts rows ascending and collapses duplicate dates onto the
// last row seen. Non-positive closes are kept; the detector treats them as
// non-qualifying starts.
func candlesToSeries(token string, rows []candleRow) (cycle.Series, error) {
	obs := make([]cycle.Observation, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return cycle.Series{}, fmt.Errorf("%w: candle %d has %d fields", ErrDataUnavailable, i, len(row))
		}

		var stamp string
		if err := json.Unmarshal(row[0], &stamp); err != nil {
			return cycle.Series{}, fmt.Errorf("%w: candle %d timestamp: %v", ErrDataUnavailable, i, err)
		}
		ts, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return cycle.Series{}, fmt.Errorf("%w: candle %d timestamp: %v", ErrDataUnavailable, i, err)
		}

		var closePrice decimal.Decimal
		if err := json.Unmarshal(row[4], &closePrice); err != nil {
			return cycle.Series{}, fmt.Errorf("%w: candle %d close: %v", ErrDataUnavailable, i, err)
		}
		obs = append(obs, cycle.Observation{Date: ts, Close: closePrice})
	}

	return normalise(token, obs)
}

// normalise sorts observations by date and drops earlier duplicates of a day.
func normalise(token string, obs []cycle.Observation) (cycle.Series, error) {
	if len(obs) == 0 {
		return cycle.Series{}, fmt.Errorf("%w: no candles for %s", ErrDataUnavailable, token)
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	out := obs[:0]
	for _, o := range obs {
		if n := len(out); n > 0 && cycle.CalendarDays(out[n-1].Date, o.Date) == 0 {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	return cycle.Series{Instrument: token, Observations: out}, nil
}

type candleRequest struct {
	Exchange    string `json:"exchange"`
	SymbolToken string `json:"symboltoken"`
	Interval    string `json:"interval"`
	FromDate    string `json:"fromdate"`
	ToDate      string `json:"todate"`
}

// candleRow is [timestamp, open, high, low, close, volume].
type candleRow []json.RawMessage

type candleResponse struct {
	Status    bool        `json:"status"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"errorcode"`
	Data      []candleRow `json:"data"`
}

type errorResponse struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorcode"`
	Error     string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("smartapi error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("smartapi error (%d): %s", status, apiErr.Error)
		}
		if apiErr.ErrorCode != "" {
			return fmt.Errorf("smartapi error (%d): %s", status, apiErr.ErrorCode)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("smartapi error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("smartapi error (%d)", status)
}

var _ SeriesProvider = (*SmartAPI)(nil)
