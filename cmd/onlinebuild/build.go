package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drpcorg/onlinebuild/builder"
	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/maintainer"
	"github.com/drpcorg/onlinebuild/pebblekv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

var (
	buildLimit            int
	buildRecordsPerSecond int
	buildMaxRetries       int
	buildRecordTypes      string
	buildMarkReadable     bool
	buildSeedWriteOnly    bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run build_index over the configured index, building any unbuilt range",
	RunE: func(cmd *cobra.Command, args []string) error {
		rts, err := parseRecordTypes(buildRecordTypes)
		if err != nil {
			return fmt.Errorf("--record-types: %w", err)
		}

		store, err := pebblekv.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		rs := pebblekv.NewRecordStore(store)
		rs.NewMaintainer = func(tx kv.Transaction, idx recordstore.IndexIdentity) recordstore.Maintainer {
			hi, err := maintainer.NewHashIndex(tx, rs.DataSubspace(idx), 100000)
			if err != nil {
				panic(err)
			}
			return hi
		}

		ctx := context.Background()
		idx := index()

		if buildSeedWriteOnly {
			if err := store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
				rs.SeedIndexState(tx, idx, recordstore.WriteOnly)
				return nil
			}); err != nil {
				return err
			}
		}

		cfg := builder.DefaultConfig()
		if buildLimit > 0 {
			cfg.Limit = buildLimit
		}
		cfg.RecordsPerSecond = buildRecordsPerSecond
		if buildMaxRetries > 0 {
			cfg.MaxRetries = buildMaxRetries
		}
		cfg.RecordTypes = rts
		if err := cfg.Validate(); err != nil {
			return err
		}

		driver := builder.NewDriver(store, rs, idx, pk.Universe, cfg.RecordTypes, cfg, logger())
		if err := driver.Run(ctx, buildMarkReadable); err != nil {
			return err
		}
		fmt.Printf("build_index(%q) complete, recent rate %.1f rec/s\n", idx.Name, driver.RecentRate())
		return nil
	},
}

func init() {
	buildCmd.Flags().IntVar(&buildLimit, "limit", 0, "chunk row limit (0 = builder default)")
	buildCmd.Flags().IntVar(&buildRecordsPerSecond, "records-per-second", builder.DefaultRecordsPerSecond, "rate cap (0 = unlimited)")
	buildCmd.Flags().IntVar(&buildMaxRetries, "max-retries", 0, "retry budget (0 = builder default)")
	buildCmd.Flags().StringVar(&buildRecordTypes, "record-types", "", "comma-separated record type numbers (empty = all)")
	buildCmd.Flags().BoolVar(&buildMarkReadable, "mark-readable", true, "flip the index to READABLE once the build completes")
	buildCmd.Flags().BoolVar(&buildSeedWriteOnly, "seed-write-only", false, "force the index into WRITE_ONLY before building (demo/fixture convenience)")
	rootCmd.AddCommand(buildCmd)
}
