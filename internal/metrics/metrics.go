package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TensorsConverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fletcher_tensors_converted_total",
		Help: "Number of weight matrices run through the ternary codec",
	})

	TensorsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fletcher_tensors_skipped_total",
		Help: "Number of source tensors skipped before conversion",
	}, []string{"reason"})

	PackedWords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fletcher_packed_words_total",
		Help: "Total 32-bit words produced by the bit packer",
	})

	QuantizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fletcher_quantize_duration_seconds",
		Help:    "Per-matrix quantize+pack time",
		Buckets: prometheus.DefBuckets,
	})

	ComponentsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fletcher_components_written_total",
		Help: "Component record files written",
	})

	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fletcher_output_bytes_total",
		Help: "Bytes written to component record files",
	})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fletcher_conversion_duration_seconds",
		Help:    "Wall time of a whole model conversion",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	VerifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fletcher_verify_failures_total",
		Help: "Components whose read-back verification found a bit mismatch",
	})
)

func RecordQuantize(words int, d time.Duration) {
	TensorsConverted.Inc()
	PackedWords.Add(float64(words))
	QuantizeDuration.Observe(d.Seconds())
}

func RecordSkip(reason string) {
	TensorsSkipped.WithLabelValues(reason).Inc()
}

func RecordComponentWritten(bytes int64) {
	ComponentsWritten.Inc()
	BytesWritten.Add(float64(bytes))
}

func RecordConversion(d time.Duration) {
	ConversionDuration.Observe(d.Seconds())
}
