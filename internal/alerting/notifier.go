package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
	"cyclescan/internal/portfolio"
)

// Entry 是摘要中的一行。
type Entry struct {
	Instrument   string
	CycleCount   int
	AvgReturnPct decimal.Decimal
	PeakMonth    time.Month
}

// Notification 封装一次扫描的摘要。
type Notification struct {
	RunID        string
	Batch        int
	At           time.Time
	ThresholdPct decimal.Decimal
	Scanned      int
	Skipped      int
	TotalCycles  int
	PeakMonth    time.Month
	HasPeak      bool
	PValue       *float64
	Top          []Entry
}

// FromReport builds a notification carrying the topN ranked rows.
func FromReport(report portfolio.Report, batch int, at time.Time, topN int) Notification {
	peak, ok := report.PeakMonth()
	note := Notification{
		Batch:        batch,
		At:           at,
		ThresholdPct: report.Threshold,
		Scanned:      report.Scanned,
		Skipped:      len(report.Skipped),
		TotalCycles:  report.TotalCycles(),
		PeakMonth:    peak,
		HasPeak:      ok,
	}

	entries := make([]Entry, len(report.Rows))
	for i, row := range report.Rows {
		entries[i] = Entry{
			Instrument:   row.Instrument,
			CycleCount:   row.CycleCount,
			AvgReturnPct: row.AvgReturnPct,
			PeakMonth:    row.PeakMonth,
		}
	}
	note.Top = Rank(entries, topN)
	return note
}

// Rank orders entries by cycle count, then average return, then symbol, and
// keeps at most topN (all when topN <= 0).
func Rank(entries []Entry, topN int) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CycleCount != b.CycleCount {
			return a.CycleCount > b.CycleCount
		}
		if !a.AvgReturnPct.Equal(b.AvgReturnPct) {
			return a.AvgReturnPct.GreaterThan(b.AvgReturnPct)
		}
		return a.Instrument < b.Instrument
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Int("batch", note.Batch).
		Int("cycles", note.TotalCycles).
		Str("run_id", note.RunID).
		Msg("扫描摘要已发送 (Telegram)")
	return nil
}

// LogNotifier writes the summary to the log; used when no channel is enabled.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier 构造日志告警器。
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the rendered summary.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info().Int("batch", note.Batch).Msg(RenderMessage(note))
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Cycle Scan]\n")
	builder.WriteString(fmt.Sprintf("Batch: %d  At: %s\n", note.Batch, note.At.Format(time.DateTime)))
	builder.WriteString(fmt.Sprintf("Threshold: %s%%  Scanned: %d  Skipped: %d\n", note.ThresholdPct.String(), note.Scanned, note.Skipped))
	if !note.HasPeak {
		builder.WriteString("No cycles found\n")
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("Cycles: %d  Strongest month: %s\n", note.TotalCycles, cycle.ShortMonthName(note.PeakMonth)))
	if note.PValue != nil {
		builder.WriteString(fmt.Sprintf("p-value: %.4f\n", *note.PValue))
	}
	for i, e := range note.Top {
		builder.WriteString(fmt.Sprintf("%d. %s  cycles=%d  avg=%s%%  peak=%s\n",
			i+1, e.Instrument, e.CycleCount, e.AvgReturnPct.StringFixed(2), cycle.ShortMonthName(e.PeakMonth)))
	}
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
