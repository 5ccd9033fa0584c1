package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics counts session, role and provisioning outcomes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	signIns         *prometheus.CounterVec
	signOuts        *prometheus.CounterVec
	passwordChanges *prometheus.CounterVec
	roleChanges     *prometheus.CounterVec
	provisioned     *prometheus.CounterVec
	resetRequests   *prometheus.CounterVec
}

// NewMetrics creates the auth counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_signin_total",
				Help: "Sign in attempts by outcome.",
			},
			[]string{"outcome"},
		),
		signOuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_signout_total",
				Help: "Sign out attempts by outcome.",
			},
			[]string{"outcome"},
		),
		passwordChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_password_change_total",
				Help: "Password changes by outcome.",
			},
			[]string{"outcome"},
		),
		roleChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_role_change_total",
				Help: "Role grants and revocations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		provisioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_provisioned_users_total",
				Help: "Provisioned users by outcome.",
			},
			[]string{"outcome"},
		),
		resetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_password_reset_request_total",
				Help: "Password reset requests by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.signIns, m.signOuts, m.passwordChanges, m.roleChanges, m.provisioned, m.resetRequests)
	}

	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (m *Metrics) SignIn(err error) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) SignOut(err error) {
	if m == nil {
		return
	}
	m.signOuts.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) PasswordChange(err error) {
	if m == nil {
		return
	}
	m.passwordChanges.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) RoleChange(operation string, err error) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) Provisioned(result string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(result).Inc()
}

func (m *Metrics) ResetRequest(err error) {
	if m == nil {
		return
	}
	m.resetRequests.WithLabelValues(outcome(err)).Inc()
}
