package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/persist"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestInstrument(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	store := filters.NewStore()
	store.SetFilter("existing", "q", "x", true)

	stop := c.Instrument(store)
	if got := gaugeValue(t, c.entries); got != 1 {
		t.Fatalf("entries=%v, want 1", got)
	}

	store.SetFilter("users", "name", "ana", false)
	store.SetFilter("users", "page", 2, true)
	store.ApplyValues("users")
	store.DeleteFilter("existing")

	if got := counterValue(t, c.opsTotal.WithLabelValues("set_filter")); got != 2 {
		t.Errorf("operations_total(set_filter)=%v, want 2", got)
	}
	if got := counterValue(t, c.opsTotal.WithLabelValues("apply")); got != 1 {
		t.Errorf("operations_total(apply)=%v, want 1", got)
	}
	if got := counterValue(t, c.opsTotal.WithLabelValues("delete")); got != 1 {
		t.Errorf("operations_total(delete)=%v, want 1", got)
	}
	if got := counterValue(t, c.commitsTotal); got != 2 {
		t.Errorf("commits_total=%v, want 2", got)
	}
	if got := histogramCount(t, c.queryBytes); got != 2 {
		t.Errorf("query_bytes count=%v, want 2", got)
	}
	if got := gaugeValue(t, c.entries); got != 1 {
		t.Errorf("entries=%v, want 1", got)
	}

	stop()
	store.SetFilter("users", "name", "bob", true)
	if got := counterValue(t, c.opsTotal.WithLabelValues("set_filter")); got != 2 {
		t.Errorf("Expected no recording after stop, got %v", got)
	}
}

type brokenStorage struct {
	*persist.MemoryStorage
}

func (brokenStorage) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("unreachable")
}

func TestInstrumentStorage(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))
	storage := c.InstrumentStorage(brokenStorage{persist.NewMemoryStorage()})
	ctx := context.Background()

	if err := storage.Save(ctx, "users", []byte("{}")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := storage.Load(ctx, "users"); err == nil {
		t.Fatal("Expected Load error to pass through")
	}
	if err := storage.Delete(ctx, "users"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got := counterValue(t, c.storageOps.WithLabelValues("save", "success")); got != 1 {
		t.Errorf("storage_operations_total(save,success)=%v, want 1", got)
	}
	if got := counterValue(t, c.storageOps.WithLabelValues("load", "error")); got != 1 {
		t.Errorf("storage_operations_total(load,error)=%v, want 1", got)
	}
	if got := histogramCount(t, c.storageDuration.WithLabelValues("delete")); got != 1 {
		t.Errorf("storage_duration_seconds(delete) count=%v, want 1", got)
	}
	if err := storage.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewRegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithConstLabels(prometheus.Labels{"app": "promata"}))
	c.commitsTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "filters_commits_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected filters_commits_total to be registered")
	}
}
