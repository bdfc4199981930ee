package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/rpcpool/hibp-store/internal/store"
)

func newCmdStats() *cli.Command {
	var storePath string

	return &cli.Command{
		Name:  "stats",
		Usage: "Report the record count and file size of a store file.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "store",
				Usage:       "store file path",
				EnvVars:     []string{"HIBPSTORE_STORE"},
				Value:       "hibp.store",
				Destination: &storePath,
			},
		},
		Action: func(c *cli.Context) error {
			s := store.New(storePath)
			stat, err := s.Stat()
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Printf("records: %s\n", humanize.Comma(stat.Records))
			fmt.Printf("bytes:   %s (%s)\n", humanize.Comma(stat.Bytes), humanize.Bytes(uint64(stat.Bytes)))
			return nil
		},
	}
}
