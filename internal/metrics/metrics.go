package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viva_rows_imported_total",
		Help: "Question rows imported successfully.",
	})
	RowFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viva_row_failures_total",
		Help: "Question rows that failed parse, validation or persistence.",
	})
	ItemsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viva_qti_items_exported_total",
		Help: "QTI items written into export packages.",
	})
	ExportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viva_qti_export_failures_total",
		Help: "Questions that failed QTI encoding.",
	})
)

// Handler exposes the default registry, mounted at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
