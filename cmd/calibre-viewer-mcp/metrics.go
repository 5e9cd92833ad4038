package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds the Prometheus instruments. Registered once at
// startup through promauto.
type serverMetrics struct {
	ToolCalls   *prometheus.CounterVec
	ViewerLoads *prometheus.CounterVec
	PageFetches prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{
		ToolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calibre_viewer_tool_calls_total",
				Help: "Total number of MCP tool calls",
			},
			[]string{"tool", "status"},
		),
		ViewerLoads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calibre_viewer_loads_total",
				Help: "Total number of documents loaded into a viewer",
			},
			[]string{"format"},
		),
		PageFetches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "calibre_viewer_page_fetches_total",
				Help: "Total number of page content fetches",
			},
		),
	}
}
