package scraper

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/mpob/scraper")

var meter = otel.Meter("services/mpob/scraper")
var factsMerged, _ = meter.Int64Counter("palmstat.facts_merged")
var categoryFailures, _ = meter.Int64Counter("palmstat.category_failures")
