package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpcpool/hibp-store/internal/config"
	"github.com/rpcpool/hibp-store/internal/downloader"
)

type fakeFetcher struct {
	bodies map[string]string
	fail   map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	for suffix, err := range f.fail {
		if strings.HasSuffix(url, suffix) {
			return nil, err
		}
	}
	for suffix, body := range f.bodies {
		if strings.HasSuffix(url, suffix) {
			return io.NopCloser(strings.NewReader(body)), nil
		}
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutPath = filepath.Join(dir, "out.bin")
	cfg.StartPrefix = 0
	cfg.EndPrefix = 2
	cfg.Workers = 2

	f := &fakeFetcher{bodies: map[string]string{
		"00000": "004DDDC80AE4683948C5A1C5903584D8087:13\n",
		"00001": "",
		"00002": "104DDDC80AE4683948C5A1C5903584D8087:1\n" +
			"204DDDC80AE4683948C5A1C5903584D8087:2\n",
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Run(ctx, cfg, f, downloader.NopObserver{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Records != 3 {
		t.Fatalf("got %d records, want 3", res.Records)
	}

	info, err := os.Stat(cfg.OutPath)
	if err != nil {
		t.Fatalf("Stat output: %v", err)
	}
	if info.Size() != 3*20 {
		t.Fatalf("got file size %d, want %d", info.Size(), 3*20)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0
	if _, err := Run(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunReportsFirstFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutPath = filepath.Join(dir, "out.bin")
	cfg.StartPrefix = 0
	cfg.EndPrefix = 3
	cfg.Workers = 1

	f := &fakeFetcher{fail: map[string]error{
		"00002": errors.New("boom"),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Run(ctx, cfg, f, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var fe *FailureError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FailureError, got %T: %v", err, err)
	}
	if !fe.HasFailure {
		t.Fatalf("expected HasFailure=true")
	}
	if uint32(fe.FirstFailure) != 2 {
		t.Fatalf("FirstFailure = %v, want 2", fe.FirstFailure)
	}
}
