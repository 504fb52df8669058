package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "wallet_ledger"

// Metrics is safe to use as a nil pointer; every observation becomes a no-op.
type Metrics struct {
	settlementsTotal   *prometheus.CounterVec
	settlementVolume   *prometheus.CounterVec
	rolloverCompleted  prometheus.Counter
	depositsTotal      *prometheus.CounterVec
	withdrawalsTotal   *prometheus.CounterVec
	sweepRunsTotal     *prometheus.CounterVec
	sweepCanceledTotal *prometheus.CounterVec
	sweepLastRunUnix   prometheus.Gauge
	rescaleWallets     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "callbacks_total",
				Help:      "Provider callbacks partitioned by result.",
			},
			[]string{"result"},
		),
		settlementVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "volume_total",
				Help:      "Settled money partitioned by side (bet or win).",
			},
			[]string{"side"},
		),
		rolloverCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rollover",
				Name:      "completed_total",
				Help:      "Wallets whose wagering requirement was satisfied by a bet.",
			},
		),
		depositsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deposit",
				Name:      "transitions_total",
				Help:      "Deposit state transitions partitioned by resulting status.",
			},
			[]string{"status"},
		),
		withdrawalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "withdrawal",
				Name:      "transitions_total",
				Help:      "Withdrawal state transitions partitioned by resulting status.",
			},
			[]string{"status"},
		),
		sweepRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "autocancel",
				Name:      "runs_total",
				Help:      "Auto-cancel sweep runs partitioned by result.",
			},
			[]string{"result"},
		),
		sweepCanceledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "autocancel",
				Name:      "canceled_total",
				Help:      "Pending requests canceled by the sweep.",
			},
			[]string{"kind"},
		),
		sweepLastRunUnix: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "autocancel",
				Name:      "last_run_unix",
				Help:      "Unix time of the most recent sweep run.",
			},
		),
		rescaleWallets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settings",
				Name:      "rescaled_wallets_total",
				Help:      "Wallets processed by a multiplier rescale, by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveSettlement(bet, win decimal.Decimal, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.settlementsTotal.WithLabelValues("error").Inc()
		return
	}
	m.settlementsTotal.WithLabelValues("ok").Inc()
	m.settlementVolume.WithLabelValues("bet").Add(bet.InexactFloat64())
	m.settlementVolume.WithLabelValues("win").Add(win.InexactFloat64())
}

func (m *Metrics) ObserveRolloverCompleted() {
	if m == nil {
		return
	}
	m.rolloverCompleted.Inc()
}

func (m *Metrics) ObserveDeposit(status string) {
	if m == nil {
		return
	}
	m.depositsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveWithdrawal(status string) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSweep(deposits, withdrawals int, err error) {
	if m == nil {
		return
	}
	m.sweepLastRunUnix.Set(float64(time.Now().UTC().Unix()))
	if err != nil {
		m.sweepRunsTotal.WithLabelValues("error").Inc()
	} else {
		m.sweepRunsTotal.WithLabelValues("success").Inc()
	}
	if deposits > 0 {
		m.sweepCanceledTotal.WithLabelValues("deposit").Add(float64(deposits))
	}
	if withdrawals > 0 {
		m.sweepCanceledTotal.WithLabelValues("withdrawal").Add(float64(withdrawals))
	}
}

func (m *Metrics) ObserveRescale(updated, failed int) {
	if m == nil {
		return
	}
	m.rescaleWallets.WithLabelValues("updated").Add(float64(updated))
	m.rescaleWallets.WithLabelValues("failed").Add(float64(failed))
}
