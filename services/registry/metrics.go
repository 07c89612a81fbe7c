package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	createsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_creates_total",
		Help: "Create pipeline invocations by module and outcome.",
	}, []string{"module", "outcome"})

	auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_audit_write_failures_total",
		Help: "Entities persisted whose audit entry could not be recorded.",
	})
)

func init() {
	prometheus.MustRegister(createsTotal, auditWriteFailures)
}

func outcomeLabel(err error) string {
	switch classify(err) {
	case failValidation:
		return "validation_failed"
	case failBusinessRule:
		return "business_rule"
	case failReference:
		return "reference_not_found"
	case failStore:
		return "store_unavailable"
	case failNone:
		return "ok"
	}
	return "error"
}
