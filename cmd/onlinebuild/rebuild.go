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
	rebuildLimit       int
	rebuildRecordTypes string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run the single-transaction rebuild path: clear and reapply the index in one shot",
	Long: "rebuild clears the index's applied data and built-range set and " +
		"reapplies the maintainer to every record in the range, all inside one " +
		"transaction. It is meant for small record ranges that fit comfortably " +
		"in a single transaction — build is the online path for everything else.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rts, err := parseRecordTypes(rebuildRecordTypes)
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

		idx := index()
		limit := rebuildLimit
		if limit <= 0 {
			limit = builder.DefaultLimit
		}
		m := builder.NewMetrics(idx.Name)

		ctx := context.Background()
		err = store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
			handle, err := rs.Open(ctx, tx)
			if err != nil {
				return err
			}
			return builder.Rebuild(ctx, handle, idx, pk.Universe, rts, limit, m)
		})
		if err != nil {
			return err
		}
		fmt.Printf("rebuild(%q) complete\n", idx.Name)
		return nil
	},
}

func init() {
	rebuildCmd.Flags().IntVar(&rebuildLimit, "limit", 0, "chunk row limit used while scanning within the rebuild transaction (0 = builder default)")
	rebuildCmd.Flags().StringVar(&rebuildRecordTypes, "record-types", "", "comma-separated record type numbers (empty = all)")
	rootCmd.AddCommand(rebuildCmd)
}
