// Package metrics exposes the fund-operator daemon's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fragmetric_operator_build_info",
		Help: "Build information of the fund operator",
	}, []string{"version", "commit", "date"})

	CommandStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fragmetric_operator_command_steps_total",
		Help: "Pipeline steps taken, by command and outcome",
	}, []string{"command", "status"})

	CommandStepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fragmetric_operator_command_step_errors_total",
		Help: "Pipeline steps that failed, by command",
	}, []string{"command"})

	PriceUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fragmetric_operator_price_updates_total",
		Help: "Successful fund price updates",
	})

	PriceUpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fragmetric_operator_price_update_errors_total",
		Help: "Failed fund price updates",
	})

	SnapshotSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fragmetric_operator_snapshot_saves_total",
		Help: "Engine state snapshots written",
	})

	ReceiptTokenPriceLamports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fragmetric_operator_receipt_token_price_lamports",
		Help: "Cached price of one whole receipt token in lamports",
	})

	ReceiptTokenSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fragmetric_operator_receipt_token_supply",
		Help: "Receipt token supply in base units",
	})
)
