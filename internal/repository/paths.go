package repository

import (
	"path"
	"strings"
)

const (
	seriesExt        = ".csv"
	summarySuffix    = "_summary.json"
	aggregateSummary = "_latest_summaries.json"

	seriesContentType  = "text/csv"
	summaryContentType = "application/json"
)

var objectNameReplacer = strings.NewReplacer(":", "_", "/", "_")

// ObjectName escapes a symbol for use as an object basename.
func ObjectName(symbol string) string {
	return objectNameReplacer.Replace(strings.TrimSpace(symbol))
}

func seriesPath(prefix, symbol string) string {
	return path.Join(prefix, ObjectName(symbol)+seriesExt)
}

func summaryPath(prefix, symbol string) string {
	return path.Join(prefix, ObjectName(symbol)+summarySuffix)
}

func aggregatePath(prefix string) string {
	return path.Join(prefix, aggregateSummary)
}
