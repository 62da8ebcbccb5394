package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pebblekv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
)

var statusMaxIntervals int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print an index's state and its built-range coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := pebblekv.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		rs := pebblekv.NewRecordStore(store)
		idx := index()
		ctx := context.Background()

		return store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
			handle, err := rs.Open(ctx, tx)
			if err != nil {
				return err
			}
			state, err := handle.IndexState(idx)
			if err != nil {
				return err
			}
			fmt.Printf("index %q: %s\n", idx.Name, state)

			brs := rangeset.New(handle.IndexRangeSubspace(idx))
			n := 0
			for ivl, err := range brs.Missing(ctx, tx, pk.NegInf, pk.PosInf) {
				if err != nil {
					return err
				}
				n++
				if n <= statusMaxIntervals {
					fmt.Printf("  missing: [%s, %s)\n", ivl.Begin, ivl.End)
				}
			}
			if n == 0 {
				fmt.Println("  fully built")
			} else if n > statusMaxIntervals {
				fmt.Printf("  ... and %d more missing interval(s)\n", n-statusMaxIntervals)
			}
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusMaxIntervals, "max-intervals", 20, "cap on how many missing intervals to print")
	rootCmd.AddCommand(statusCmd)
}
