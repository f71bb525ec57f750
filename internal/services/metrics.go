package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"planpilot/internal/models"
)

var (
	chatRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planpilot_chat_requests_total",
		Help: "Total chat turns processed.",
	})

	chatSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planpilot_chat_superseded_total",
		Help: "Chat turns whose results were discarded as stale.",
	})

	chatTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planpilot_chat_turn_duration_seconds",
		Help:    "Wall-clock duration of a full chat turn, LLM call included.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	instructionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planpilot_instruction_outcomes_total",
		Help: "Executed instructions by intent and result.",
	}, []string{"intent", "status"})
)

func recordOutcomes(outcomes []models.ExecutionOutcome) {
	for _, o := range outcomes {
		status := "success"
		if !o.Success {
			status = "failure"
		}
		instructionOutcomes.WithLabelValues(o.Instruction.Intent, status).Inc()
	}
}
