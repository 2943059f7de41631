package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MenuInfoProvider exposes the menu being served.
type MenuInfoProvider interface {
	MenuLanguage() string
	OptionCount() int
}

// Collector is a prometheus.Collector for the hotline. Request handlers feed
// it through the Observe methods; values are emitted at scrape time.
type Collector struct {
	menu      MenuInfoProvider
	startTime time.Time

	mu        sync.Mutex
	callbacks map[string]uint64 // by route
	digits    map[string]uint64 // by outcome
	tts       map[string]uint64 // by result

	// Metric descriptors.
	callbacksDesc *prometheus.Desc
	digitsDesc    *prometheus.Desc
	ttsDesc       *prometheus.Desc
	menuDesc      *prometheus.Desc
	uptimeDesc    *prometheus.Desc
}

// TTS results recorded by ObserveTTS.
const (
	TTSOK       = "ok"
	TTSFallback = "fallback"
	TTSRetried  = "retried"
	TTSFailed   = "failed"
	TTSRejected = "rejected"
)

// NewCollector creates a new metrics collector. menu may be nil.
func NewCollector(menu MenuInfoProvider, startTime time.Time) *Collector {
	return &Collector{
		menu:      menu,
		startTime: startTime,
		callbacks: make(map[string]uint64),
		digits:    make(map[string]uint64),
		tts:       make(map[string]uint64),

		callbacksDesc: prometheus.NewDesc(
			"safeyouth_ivr_callbacks_total",
			"Voice callbacks answered, by route",
			[]string{"route"}, nil,
		),
		digitsDesc: prometheus.NewDesc(
			"safeyouth_ivr_digits_total",
			"Menu selections handled, by outcome (action name or invalid)",
			[]string{"outcome"}, nil,
		),
		ttsDesc: prometheus.NewDesc(
			"safeyouth_tts_requests_total",
			"Text-to-speech requests, by result",
			[]string{"result"}, nil,
		),
		menuDesc: prometheus.NewDesc(
			"safeyouth_ivr_menu_options",
			"Number of options in the menu being served",
			[]string{"language"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"safeyouth_uptime_seconds",
			"Seconds since the IVR process started",
			nil, nil,
		),
	}
}

// ObserveCallback counts one answered voice callback.
func (c *Collector) ObserveCallback(route string) {
	c.inc(c.callbacks, route)
}

// ObserveDigit counts one handled menu selection.
func (c *Collector) ObserveDigit(outcome string) {
	c.inc(c.digits, outcome)
}

// ObserveTTS counts one TTS request with the given result.
func (c *Collector) ObserveTTS(result string) {
	c.inc(c.tts, result)
}

func (c *Collector) inc(m map[string]uint64, label string) {
	c.mu.Lock()
	m[label]++
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callbacksDesc
	ch <- c.digitsDesc
	ch <- c.ttsDesc
	ch <- c.menuDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	c.emit(ch, c.callbacksDesc, c.callbacks)
	c.emit(ch, c.digitsDesc, c.digits)
	c.emit(ch, c.ttsDesc, c.tts)
	c.mu.Unlock()

	if c.menu != nil {
		ch <- prometheus.MustNewConstMetric(
			c.menuDesc, prometheus.GaugeValue,
			float64(c.menu.OptionCount()), c.menu.MenuLanguage(),
		)
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}

// emit sends one counter per label. Caller holds c.mu.
func (c *Collector) emit(ch chan<- prometheus.Metric, desc *prometheus.Desc, m map[string]uint64) {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(m[l]), l)
	}
}
