// Package guard gates protected routes on session state.
package guard

// LoginRoute is where unauthenticated navigation is redirected
const LoginRoute = "/login"

// Sessions is the read-only session view the guard consumes
type Sessions interface {
	IsAuthenticated() bool
}

// Decision is the outcome of a guard check
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard is a pure derived gate: no state of its own, no side effects
// beyond the redirect target it reports.
type Guard struct {
	sessions Sessions
}

// New creates a Guard over the given session view
func New(sessions Sessions) *Guard {
	return &Guard{sessions: sessions}
}

// Check gates navigation to route: authenticated navigation passes
// through unchanged, everything else is redirected to the login view.
func (g *Guard) Check(route string) Decision {
	if g.sessions.IsAuthenticated() {
		return Decision{Allowed: true, Redirect: route}
	}
	return Decision{Allowed: false, Redirect: LoginRoute}
}
