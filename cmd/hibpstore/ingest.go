package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/hibp-store/internal/config"
	"github.com/rpcpool/hibp-store/internal/downloader"
	"github.com/rpcpool/hibp-store/internal/ingest"
	"github.com/rpcpool/hibp-store/internal/prefix"
	"github.com/rpcpool/hibp-store/internal/telemetry"
)

func newCmdIngest() *cli.Command {
	cfg := config.Default()

	return &cli.Command{
		Name:  "ingest",
		Usage: "Download the full HIBP range corpus and build a sorted on-disk store.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "base-url",
				Usage:       "HIBP range API base URL",
				EnvVars:     []string{"HIBPSTORE_BASE_URL"},
				Value:       cfg.BaseURL,
				Destination: &cfg.BaseURL,
			},
			&cli.StringFlag{
				Name:        "out",
				Usage:       "final store file path",
				EnvVars:     []string{"HIBPSTORE_OUT"},
				Value:       cfg.OutPath,
				Destination: &cfg.OutPath,
			},
			&cli.StringFlag{
				Name:        "tmp-path",
				Usage:       "temporary write path for DownloadThenReplace publication (default: sibling download_tmp)",
				EnvVars:     []string{"HIBPSTORE_TMP_PATH"},
				Destination: &cfg.TmpPath,
			},
			&cli.IntFlag{
				Name:        "workers",
				Usage:       "concurrent downloader workers",
				EnvVars:     []string{"HIBPSTORE_WORKERS"},
				Value:       cfg.Workers,
				Destination: &cfg.Workers,
			},
			&cli.UintFlag{
				Name:    "start-prefix",
				Usage:   "first prefix to fetch, as a 20-bit integer (0x00000-0xFFFFF)",
				EnvVars: []string{"HIBPSTORE_START_PREFIX"},
				Value:   uint(cfg.StartPrefix),
				Action: func(c *cli.Context, v uint) error {
					cfg.StartPrefix = uint32(v)
					return nil
				},
			},
			&cli.UintFlag{
				Name:    "end-prefix",
				Usage:   "last prefix to fetch, inclusive (0x00000-0xFFFFF)",
				EnvVars: []string{"HIBPSTORE_END_PREFIX"},
				Value:   uint(cfg.EndPrefix),
				Action: func(c *cli.Context, v uint) error {
					cfg.EndPrefix = uint32(v)
					return nil
				},
			},
			&cli.DurationFlag{
				Name:        "http-timeout",
				Usage:       "per-request HTTP timeout",
				EnvVars:     []string{"HIBPSTORE_HTTP_TIMEOUT"},
				Value:       cfg.HTTPTimeout,
				Destination: &cfg.HTTPTimeout,
			},
			&cli.Uint64Flag{
				Name:        "max-retries",
				Usage:       "per-request retry budget",
				EnvVars:     []string{"HIBPSTORE_MAX_RETRIES"},
				Value:       cfg.MaxRetries,
				Destination: &cfg.MaxRetries,
			},
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "print a progress bar to stderr",
				EnvVars:     []string{"HIBPSTORE_PROGRESS"},
				Value:       cfg.Progress,
				Destination: &cfg.Progress,
			},
		},
		Action: func(c *cli.Context) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			rangeLabel := fmt.Sprintf("%05x-%05x", cfg.StartPrefix, cfg.EndPrefix)
			shutdown, err := telemetry.Init(c.Context, "hibpstore-ingest", rangeLabel)
			if err != nil {
				return fmt.Errorf("telemetry init: %w", err)
			}
			defer shutdown()

			obs := telemetry.NewObserver()
			var d downloader.Observer = obs
			if cfg.Progress {
				total := int64(cfg.EndPrefix-cfg.StartPrefix) + 1
				bar := progressbar.NewOptions64(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("ingesting"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetItsString("prefix"),
				)
				d = &barObserver{Observer: obs, bar: bar}
				defer bar.Close()
			}

			start := time.Now()
			res, err := ingest.Run(c.Context, cfg, nil, d)
			if err != nil {
				var fe *ingest.FailureError
				if errors.As(err, &fe) && fe.HasFailure {
					klog.Errorf("ingest failed at prefix %s; resume with --start-prefix %#x", fe.FirstFailure, uint32(fe.FirstFailure))
				}
				return fmt.Errorf("ingest: %w", err)
			}

			klog.Infof("ingest complete: %s records (%s) in %s",
				humanize.Comma(res.Records), humanize.Bytes(uint64(res.Bytes)), time.Since(start))
			return nil
		},
	}
}

// barObserver ticks a progress bar once per fetched prefix, following
// the teacher's use of schollz/progressbar for long-running,
// single-pass jobs.
type barObserver struct {
	downloader.Observer
	bar *progressbar.ProgressBar
}

func (b *barObserver) PrefixFetched(worker int, p prefix.Prefix) {
	b.Observer.PrefixFetched(worker, p)
	_ = b.bar.Add(1)
}
