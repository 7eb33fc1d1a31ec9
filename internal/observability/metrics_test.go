package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordersPopulateFamilies(t *testing.T) {
	RecordHTTPRequest("node.test", "GET", "/status", 200, 5*time.Millisecond)
	SetPeersConnected(2)
	RecordItemRelayed("host")
	RecordItemDeduped("client")
	RecordAuthFailure()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"clipqueue_http_requests_total":       false,
		"clipqueue_queue_peers_connected":     false,
		"clipqueue_queue_items_relayed_total": false,
		"clipqueue_queue_items_deduped_total": false,
		"clipqueue_queue_auth_failures_total": false,
	}
	for _, family := range families {
		if _, ok := want[family.GetName()]; ok {
			want[family.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("metric family %s not registered", name)
		}
	}
}
