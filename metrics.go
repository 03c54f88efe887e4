package socialn

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Event names shared by metrics labels and audit records.
const (
	EventRegisterSuccess    = "register_success"
	EventRegisterFailure    = "register_failure"
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventLoginRateLimited   = "login_rate_limited"
	EventRefreshSuccess     = "refresh_success"
	EventRefreshFailure     = "refresh_failure"
	EventRefreshReuse       = "refresh_reuse_detected"
	EventRefreshRateLimited = "refresh_rate_limited"
	EventSessionCreated     = "session_created"
	EventLogout             = "logout"
	EventLogoutAll          = "logout_all"
	EventValidateFailure    = "validate_failure"
	EventPasswordRehashed   = "password_rehashed"
)

// Metrics counts auth events on a Prometheus registerer.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics registers socialn_auth_events_total on reg. Registering twice on
// the same registerer reuses the existing collector.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialn",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Authentication events by type.",
	}, []string{"event"})

	if reg != nil {
		if err := reg.Register(events); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err
			}
			events = existing
		}
	}

	return &Metrics{events: events}, nil
}

// Inc increments the counter for event. A nil Metrics is a no-op.
func (m *Metrics) Inc(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}
