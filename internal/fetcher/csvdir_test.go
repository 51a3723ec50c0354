package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCSVDirFetch(t *testing.T) {
	dir := t.TempDir()
	content := "date,close\n2024-01-03,102\n2024-01-02,100\n2023-12-01,90\n2024-01-04,0\n"
	if err := os.WriteFile(filepath.Join(dir, "INFY.csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	series, err := NewCSVDir(dir).FetchSeries(context.Background(), "INFY", from, to)
	if err != nil {
		t.Fatalf("读取 CSV 不应报错: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("期望 3 条观测, 实际 %d", series.Len())
	}
	if !series.Observations[2].Close.IsZero() {
		t.Fatalf("零收盘应保留给检测器处理, 实际 %s", series.Observations[2].Close)
	}
	if series.Observations[0].Date.Day() != 2 {
		t.Fatalf("应按日期升序")
	}
	if series.Instrument != "INFY" {
		t.Fatalf("instrument 不正确: %s", series.Instrument)
	}
}

func TestCSVDirMissingFile(t *testing.T) {
	_, err := NewCSVDir(t.TempDir()).FetchSeries(context.Background(), "NOPE", time.Time{}, time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("缺少文件应视为数据不可用, 实际 %v", err)
	}
}

func TestCSVDirBadRow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "X.csv"), []byte("2024-01-02,100\nnot-a-date,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCSVDir(dir).FetchSeries(context.Background(), "X", time.Time{}, time.Now()); err == nil {
		t.Fatal("非法日期行应报错")
	}
}

func TestCSVDirInvalidTokenUnavailable(t *testing.T) {
	for _, token := range []string{"../etc/passwd", ""} {
		if _, err := NewCSVDir(t.TempDir()).FetchSeries(context.Background(), token, time.Time{}, time.Now()); !errors.Is(err, ErrDataUnavailable) {
			t.Fatalf("非法 token %q 应视为数据不可用, 实际 %v", token, err)
		}
	}
}
