package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Validation failure kinds used as the "reason" label.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonMissingClientID = "missing_client_id"
	ReasonClientMismatch  = "client_mismatch"
	ReasonUnknownClient   = "unknown_client"
	ReasonScopeNotAllowed = "scope_not_allowed"
	ReasonUnknown         = "unknown"
)

var (
	DeviceCodesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "device_codes_issued_total",
		Help: "Total number of device code pairs issued.",
	})
	ValidationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "device_authorization_validation_failures_total",
		Help: "Total number of rejected device authorization requests by reason.",
	}, []string{"reason"})
	CodeCollisionRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "device_code_collision_retries_total",
		Help: "Total number of device code pairs regenerated after a collision.",
	})
	CodeGenerationExhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "device_code_generation_exhausted_total",
		Help: "Total number of requests that ran out of code generation attempts.",
	})
	ExpiredCodesPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "device_codes_expired_purged_total",
		Help: "Total number of expired device code records removed by the sweeper.",
	})
)

// InitCustomMetrics registers the device authorization metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"DeviceCodesIssuedTotal":       DeviceCodesIssuedTotal,
		"ValidationFailuresTotal":      ValidationFailuresTotal,
		"CodeCollisionRetriesTotal":    CodeCollisionRetriesTotal,
		"CodeGenerationExhaustedTotal": CodeGenerationExhaustedTotal,
		"ExpiredCodesPurgedTotal":      ExpiredCodesPurgedTotal,
	}

	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msgf("Failed to register %s metric", name)
		}
	}

	log.Info().Msg("Custom Prometheus metrics registered.")
}
