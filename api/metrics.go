package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postracker_records",
		Help: "Number of deployment records in the collection",
	})

	bulkUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postracker_bulk_updates_total",
		Help: "Bulk updates applied",
	})

	bulkRecordsChangedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postracker_bulk_records_changed_total",
		Help: "Records changed by bulk updates",
	})

	persistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postracker_persistence_failures_total",
		Help: "Saves that failed and left changes in memory only",
	})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postracker_imports_total",
		Help: "Spreadsheet imports by result",
	}, []string{"result"})

	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postracker_exports_total",
		Help: "Exports by format",
	}, []string{"format"})

	attachmentsUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postracker_attachments_uploaded_total",
		Help: "PDF attachments stored",
	})
)

// Import results.
const (
	importPreviewed = "previewed"
	importConfirmed = "confirmed"
	importCancelled = "cancelled"
	importRejected  = "rejected"
)

// observeSave is installed as RecordStore.OnSave. It runs under the store
// lock and must not call back into the store.
func observeSave(err error) {
	if err != nil {
		persistenceFailuresTotal.Inc()
	}
}
