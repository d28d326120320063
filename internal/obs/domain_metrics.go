package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutBootstrapTotal counts checkout session bootstraps by data source.
	CheckoutBootstrapTotal *prometheus.CounterVec
	// OrderSubmitTotal counts order submissions by settlement path and outcome.
	OrderSubmitTotal *prometheus.CounterVec
	// WalletSettleTotal counts local ledger settlements by outcome.
	WalletSettleTotal *prometheus.CounterVec
	// StepTransitionTotal counts checkout step transitions.
	StepTransitionTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutBootstrapTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_bootstrap_total",
			Help:      "Count of checkout session bootstraps by selected data source.",
		}, []string{"source", "result"})
		OrderSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submit_total",
			Help:      "Count of order submissions by settlement path and outcome.",
		}, []string{"path", "result"})
		WalletSettleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_settle_total",
			Help:      "Count of local wallet ledger settlements by outcome.",
		}, []string{"result"})
		StepTransitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_step_transition_total",
			Help:      "Count of checkout step transitions.",
		}, []string{"from", "to"})

		mustRegisterCollector(reg, CheckoutBootstrapTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutBootstrapTotal = v
			}
		})
		mustRegisterCollector(reg, OrderSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, WalletSettleTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WalletSettleTotal = v
			}
		})
		mustRegisterCollector(reg, StepTransitionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StepTransitionTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
