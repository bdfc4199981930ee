package telemetry

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(metricsPrefixesProcessed)
	prometheus.MustRegister(metricsPasswordsProcessed)
	prometheus.MustRegister(metricsRunningWorkers)
	prometheus.MustRegister(metricsDownloadErrors)
}

var metricsPrefixesProcessed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hibpstore_prefixes_processed_total",
		Help: "Prefixes successfully downloaded and parsed",
	},
)

var metricsPasswordsProcessed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hibpstore_passwords_processed_total",
		Help: "Individual password records sent downstream by the downloader",
	},
)

var metricsRunningWorkers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "hibpstore_running_workers",
		Help: "Downloader workers currently alive",
	},
)

var metricsDownloadErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hibpstore_download_errors_total",
		Help: "Download errors by kind",
	},
	[]string{"kind"},
)
