package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMarketMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMarketMetrics(reg)

	metrics.IncListingCreated("auction")
	metrics.IncListingCreated("auction")
	metrics.IncListingClosed("sold")
	metrics.IncBidPlaced()
	metrics.AddAutoRebids(3)
	metrics.AddAutoRebids(0)
	metrics.ObserveSettlement("auction", 120*time.Millisecond)
	metrics.IncWithdrawal()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "market_listings_created", "mode", "auction"); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 2 {
		t.Fatalf("expected created=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "market_listings_closed", "outcome", "sold"); err != nil {
		t.Fatalf("fetch closed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected closed=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "market_auto_rebids")
	if mf == nil || len(mf.GetMetric()) == 0 {
		t.Fatal("metric market_auto_rebids not found")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected auto rebids=3, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "market_settlement_duration_seconds", "mode", "auction"); err != nil {
		t.Fatalf("fetch settlement: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected settlement sum > 0, got %f", got)
	}
}

func TestMarketMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *MarketMetrics
	metrics.IncBidPlaced()
	metrics.AddAutoRebids(2)
	metrics.IncListingCreated("fixed_price")
	metrics.ObserveSettlement("fixed_price", time.Second)
	metrics.IncWithdrawal()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
