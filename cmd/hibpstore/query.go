package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/hibp-store/internal/store"
)

func newCmdQuery() *cli.Command {
	var storePath string

	return &cli.Command{
		Name:      "query",
		Usage:     "Report whether a SHA-1 hash is present in a store file.",
		ArgsUsage: "<sha1-hex>",
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
			if c.NArg() != 1 {
				return fmt.Errorf("query: expected exactly one sha1-hex argument")
			}
			raw, err := hex.DecodeString(c.Args().First())
			if err != nil {
				return fmt.Errorf("query: invalid hex: %w", err)
			}
			if len(raw) != store.RecordSize {
				return fmt.Errorf("query: expected a %d-byte SHA-1, got %d bytes", store.RecordSize, len(raw))
			}
			var sha1 [store.RecordSize]byte
			copy(sha1[:], raw)

			s := store.New(storePath)
			ok, err := s.Exists(sha1)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if ok {
				fmt.Println("present")
				return nil
			}
			fmt.Println("absent")
			return cli.Exit("", 1)
		},
	}
}
