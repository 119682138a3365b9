package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ArtifactStatsProvider exposes the current contents of the audio store.
type ArtifactStatsProvider interface {
	Stats() (count int, totalBytes int64, err error)
	RemovedTotal() uint64
}

// PipelineStatsProvider exposes webhook pipeline outcome counters.
type PipelineStatsProvider interface {
	CallsTotal() uint64
	CallsFailed(kind string) uint64
	AudioServed() uint64
	AudioNotFound() uint64
}

// FailureKinds lists the failure labels reported by PipelineStatsProvider.
var FailureKinds = []string{"synthesis", "storage", "internal"}

// Collector is a prometheus.Collector that gathers ttsbridge metrics at scrape time.
type Collector struct {
	artifacts ArtifactStatsProvider
	pipeline  PipelineStatsProvider
	startTime time.Time

	// Metric descriptors.
	artifactsDesc     *prometheus.Desc
	artifactBytesDesc *prometheus.Desc
	sweptDesc         *prometheus.Desc
	callsDesc         *prometheus.Desc
	callsFailedDesc   *prometheus.Desc
	audioServedDesc   *prometheus.Desc
	audioNotFoundDesc *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(artifacts ArtifactStatsProvider, pipeline PipelineStatsProvider, startTime time.Time) *Collector {
	return &Collector{
		artifacts: artifacts,
		pipeline:  pipeline,
		startTime: startTime,

		artifactsDesc: prometheus.NewDesc(
			"ttsbridge_audio_files",
			"Number of audio files currently stored",
			nil, nil,
		),
		artifactBytesDesc: prometheus.NewDesc(
			"ttsbridge_audio_bytes",
			"Total size of stored audio files in bytes",
			nil, nil,
		),
		sweptDesc: prometheus.NewDesc(
			"ttsbridge_audio_swept_total",
			"Audio files deleted by the retention sweep",
			nil, nil,
		),
		callsDesc: prometheus.NewDesc(
			"ttsbridge_voice_webhooks_total",
			"Voice webhook requests processed",
			nil, nil,
		),
		callsFailedDesc: prometheus.NewDesc(
			"ttsbridge_voice_webhook_failures_total",
			"Voice webhook requests answered with the fallback apology",
			[]string{"kind"}, nil,
		),
		audioServedDesc: prometheus.NewDesc(
			"ttsbridge_audio_served_total",
			"Audio files served to the telephony provider",
			nil, nil,
		),
		audioNotFoundDesc: prometheus.NewDesc(
			"ttsbridge_audio_not_found_total",
			"Audio requests for missing or expired files",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"ttsbridge_uptime_seconds",
			"Seconds since the ttsbridge process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.artifactsDesc
	ch <- c.artifactBytesDesc
	ch <- c.sweptDesc
	ch <- c.callsDesc
	ch <- c.callsFailedDesc
	ch <- c.audioServedDesc
	ch <- c.audioNotFoundDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.artifacts != nil {
		count, total, err := c.artifacts.Stats()
		if err != nil {
			slog.Error("metrics: failed to read audio store stats", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.artifactsDesc, prometheus.GaugeValue,
				float64(count),
			)
			ch <- prometheus.MustNewConstMetric(
				c.artifactBytesDesc, prometheus.GaugeValue,
				float64(total),
			)
		}
		ch <- prometheus.MustNewConstMetric(
			c.sweptDesc, prometheus.CounterValue,
			float64(c.artifacts.RemovedTotal()),
		)
	}

	if c.pipeline != nil {
		ch <- prometheus.MustNewConstMetric(
			c.callsDesc, prometheus.CounterValue,
			float64(c.pipeline.CallsTotal()),
		)
		for _, kind := range FailureKinds {
			ch <- prometheus.MustNewConstMetric(
				c.callsFailedDesc, prometheus.CounterValue,
				float64(c.pipeline.CallsFailed(kind)), kind,
			)
		}
		ch <- prometheus.MustNewConstMetric(
			c.audioServedDesc, prometheus.CounterValue,
			float64(c.pipeline.AudioServed()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.audioNotFoundDesc, prometheus.CounterValue,
			float64(c.pipeline.AudioNotFound()),
		)
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
