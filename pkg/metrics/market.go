package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics records counters for the trading surface.
type MarketMetrics struct {
	listingsCreated *prometheus.CounterVec
	listingsClosed  *prometheus.CounterVec
	bidsPlaced      prometheus.Counter
	autoRebids      prometheus.Counter
	settlements     *prometheus.HistogramVec
	withdrawals     prometheus.Counter
}

// NewMarketMetrics registers the market metrics on the provided registerer.
func NewMarketMetrics(reg prometheus.Registerer) *MarketMetrics {
	if reg == nil {
		return &MarketMetrics{}
	}
	listingsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_listings_created",
		Help: "Listings created, labelled by sale mode.",
	}, []string{"mode"})
	listingsClosed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_listings_closed",
		Help: "Listings reaching a terminal state, labelled by outcome.",
	}, []string{"outcome"})
	bidsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_bids_placed",
		Help: "Bids accepted by the bidding engine.",
	})
	autoRebids := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_auto_rebids",
		Help: "Counter-bids issued on behalf of ceiling bidders.",
	})
	settlements := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_settlement_duration_seconds",
		Help:    "Duration of settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	withdrawals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_withdrawals",
		Help: "Completed credit withdrawals.",
	})
	reg.MustRegister(listingsCreated, listingsClosed, bidsPlaced, autoRebids, settlements, withdrawals)
	return &MarketMetrics{
		listingsCreated: listingsCreated,
		listingsClosed:  listingsClosed,
		bidsPlaced:      bidsPlaced,
		autoRebids:      autoRebids,
		settlements:     settlements,
		withdrawals:     withdrawals,
	}
}

// IncListingCreated increments the created counter for the sale mode.
func (m *MarketMetrics) IncListingCreated(mode string) {
	if m == nil || m.listingsCreated == nil {
		return
	}
	m.listingsCreated.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncListingClosed increments the terminal counter for the outcome.
func (m *MarketMetrics) IncListingClosed(outcome string) {
	if m == nil || m.listingsClosed == nil {
		return
	}
	m.listingsClosed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncBidPlaced increments the accepted-bid counter.
func (m *MarketMetrics) IncBidPlaced() {
	if m == nil || m.bidsPlaced == nil {
		return
	}
	m.bidsPlaced.Inc()
}

// AddAutoRebids adds a bid placement's whole auto-rebid exchange at once.
func (m *MarketMetrics) AddAutoRebids(n int) {
	if m == nil || m.autoRebids == nil || n <= 0 {
		return
	}
	m.autoRebids.Add(float64(n))
}

// ObserveSettlement records how long a settlement transaction took.
func (m *MarketMetrics) ObserveSettlement(mode string, duration time.Duration) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// IncWithdrawal increments the completed-withdrawal counter.
func (m *MarketMetrics) IncWithdrawal() {
	if m == nil || m.withdrawals == nil {
		return
	}
	m.withdrawals.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
