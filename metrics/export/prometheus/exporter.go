package prometheus

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	authclient "github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/metrics/export/internaldefs"
)

// MetricsSource is satisfied by *authclient.Manager.
type MetricsSource interface {
	MetricsSnapshot() authclient.MetricsSnapshot
	EventsDropped() uint64
}

// PrometheusExporter renders authclient metrics in Prometheus text format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from m.
func NewPrometheusExporter(m *authclient.Manager) *PrometheusExporter {
	return &PrometheusExporter{source: m}
}

// NewPrometheusExporterFromSource creates an exporter from a custom [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It returns "" when metrics are
// disabled and no events were dropped.
//
// Per-operation families only list operations called at least once.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.EventsDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && len(snap.Operations) == 0 && dropped == 0 {
		return ""
	}

	w := &textWriter{}
	w.b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		w.header(def.Name, def.Help, "counter")
		w.sample(def.Name, "", snap.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		w.header(def.Name, def.Help, "histogram")
		w.histogram(def.Name, "", snap.Histograms[def.ID], internaldefs.TotalLatency(snap.Operations))
	}

	ops := internaldefs.CalledOperations(snap.Operations)
	if len(ops) > 0 {
		w.header(internaldefs.OperationCallsName, internaldefs.OperationCallsHelp, "counter")
		for _, op := range ops {
			w.sample(internaldefs.OperationCallsName, opLabel(op), snap.Operations[op].Calls)
		}
		w.header(internaldefs.OperationFailuresName, internaldefs.OperationFailuresHelp, "counter")
		for _, op := range ops {
			w.sample(internaldefs.OperationFailuresName, opLabel(op), snap.Operations[op].Failures)
		}
		if snap.Operations[ops[0]].Latency != nil {
			w.header(internaldefs.OperationLatencyName, internaldefs.OperationLatencyHelp, "histogram")
			for _, op := range ops {
				st := snap.Operations[op]
				w.histogram(internaldefs.OperationLatencyName, opLabel(op), st.Latency, st.LatencySum)
			}
		}
	}

	w.header("authclient_events_dropped_total", "Session events dropped due to dispatcher backpressure.", "counter")
	w.sample("authclient_events_dropped_total", "", dropped)

	return w.b.String()
}

func opLabel(op authclient.Operation) string {
	return internaldefs.OperationLabel + `="` + escapeLabel(op.String()) + `"`
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) header(name, help, typ string) {
	w.b.WriteString("# HELP ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(escapeHelp(help))
	w.b.WriteString("\n# TYPE ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(typ)
	w.b.WriteByte('\n')
}

// sample writes one line. labels is the rendered label list without braces.
func (w *textWriter) sample(name, labels string, value uint64) {
	w.line(name, labels, strconv.FormatUint(value, 10))
}

func (w *textWriter) line(name, labels, value string) {
	w.b.WriteString(name)
	if labels != "" {
		w.b.WriteByte('{')
		w.b.WriteString(labels)
		w.b.WriteByte('}')
	}
	w.b.WriteByte(' ')
	w.b.WriteString(value)
	w.b.WriteByte('\n')
}

func (w *textWriter) histogram(name, labels string, raw []uint64, sum time.Duration) {
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	sep := ""
	if labels != "" {
		sep = ","
	}
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", labels+sep+`le="`+le+`"`, cumulative[i])
	}
	w.line(name+"_sum", labels, strconv.FormatFloat(sum.Seconds(), 'g', -1, 64))
	w.sample(name+"_count", labels, cumulative[len(cumulative)-1])
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = escapeHelp(v)
	return strings.ReplaceAll(v, `"`, `\"`)
}
