package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_evaluations",
	Help: "Number of content evaluations, by outcome.",
}, []string{"outcome"})

var evaluationErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_evaluation_errors",
	Help: "Number of evaluations aborted by an internal fault.",
})

var evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "warden_evaluation_duration_seconds",
	Help:    "Total duration of content evaluation, in seconds.",
	Buckets: prometheus.ExponentialBucketsRange(0.001, 20, 10),
})

var classifierFailOpenCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_classifier_failopen",
	Help: "Number of evaluations that proceeded with zero scores after a classification failure.",
})

var caseOpenedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_cases_opened",
	Help: "Number of cases opened for review, by trigger category and suggested action.",
}, []string{"category", "action"})

var caseResolvedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_cases_resolved",
	Help: "Number of cases given a terminal human verdict, by verdict.",
}, []string{"verdict"})

var autopilotExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_autopilot_executions",
	Help: "Number of holds executed autonomously, by trigger category.",
}, []string{"category"})

var autopilotAbstentions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_autopilot_abstentions",
	Help: "Number of times the autonomous executor declined to act, by gate.",
}, []string{"gate"})

var templateOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_reasoning_outcomes",
	Help: "Human verdicts recorded against reasoning templates.",
}, []string{"template", "result"})
