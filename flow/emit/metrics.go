package emit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsEmitter turns the event stream into Prometheus observations,
// namespaced "ragflow_", mirroring the teacher's PrometheusMetrics shape but
// trimmed to the counters a query-time flow actually produces: node
// latency by node ID and status, and error counts by kind.
type MetricsEmitter struct {
	nodeLatency *prometheus.HistogramVec
	nodeErrors  *prometheus.CounterVec
	flowErrors  *prometheus.CounterVec
	flowsTotal  prometheus.Counter

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewMetricsEmitter registers the flow metrics with reg.
func NewMetricsEmitter(reg prometheus.Registerer) *MetricsEmitter {
	factory := promauto.With(reg)
	return &MetricsEmitter{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragflow_node_latency_ms",
			Help:    "Node execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ragflow_node_errors_total",
			Help: "Cumulative node execution errors.",
		}, []string{"node_id", "kind"}),
		flowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ragflow_flow_errors_total",
			Help: "Cumulative flow-level execution errors.",
		}, []string{"kind"}),
		flowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragflow_flows_total",
			Help: "Cumulative flow executions started.",
		}),
		starts: make(map[string]time.Time),
	}
}

func (m *MetricsEmitter) Emit(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch event.Kind {
	case FlowStart:
		m.flowsTotal.Inc()
	case NodeStart:
		m.starts[event.ExecutionID+"/"+event.NodeID] = event.Timestamp
	case NodeEnd:
		key := event.ExecutionID + "/" + event.NodeID
		if started, ok := m.starts[key]; ok {
			delete(m.starts, key)
			m.nodeLatency.WithLabelValues(event.NodeID, "success").Observe(float64(event.Timestamp.Sub(started).Milliseconds()))
		}
	case NodeError:
		key := event.ExecutionID + "/" + event.NodeID
		if started, ok := m.starts[key]; ok {
			delete(m.starts, key)
			m.nodeLatency.WithLabelValues(event.NodeID, "error").Observe(float64(event.Timestamp.Sub(started).Milliseconds()))
		}
		kind, _ := event.Payload["kind"].(string)
		m.nodeErrors.WithLabelValues(event.NodeID, kind).Inc()
	case FlowError:
		kind, _ := event.Payload["kind"].(string)
		m.flowErrors.WithLabelValues(kind).Inc()
	}
}

func (m *MetricsEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		m.Emit(e)
	}
	return nil
}

func (m *MetricsEmitter) Flush(context.Context) error { return nil }
