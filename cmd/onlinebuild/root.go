package main

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drpcorg/onlinebuild/recordstore"
	"github.com/drpcorg/onlinebuild/utils"
)

var (
	dbPath    string
	indexName string
)

var rootCmd = &cobra.Command{
	Use:   "onlinebuild",
	Short: "Build, rebuild, and inspect online indexes over a Pebble-backed record store",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the Pebble data directory")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "", "index name")
	_ = rootCmd.MarkPersistentFlagRequired("db")
	_ = rootCmd.MarkPersistentFlagRequired("index")
}

func index() recordstore.IndexIdentity {
	return recordstore.IndexIdentity{Name: indexName}
}

func logger() utils.Logger {
	return utils.NewDefaultLogger(slog.LevelInfo)
}

// parseRecordTypes turns a comma-separated --record-types flag value into
// an RTS (spec §3). An empty string means "nil", not "empty" — the caller
// decides what that means for the operation at hand.
func parseRecordTypes(raw string) (recordstore.RecordTypeSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var types []recordstore.RecordType
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, err
		}
		types = append(types, recordstore.RecordType(n))
	}
	return recordstore.NewRecordTypeSet(types...), nil
}
