package authstate

// Decision is what a route should do with the current auth snapshot.
type Decision string

const (
	DecisionSpinner       Decision = "spinner"
	DecisionRedirectLogin Decision = "redirect_login"
	DecisionForbidden     Decision = "forbidden"
	DecisionRender        Decision = "render"
)

// Guard maps an auth snapshot to a routing decision. Pure: no I/O, no
// state, so it is trivially unit-testable and safe to call anywhere.
//
// Precedence: an outstanding check always wins (spinner), then missing
// identity (login), then insufficient privilege on admin-only routes.
func Guard(s Snapshot, adminOnly bool) Decision {
	if s.Loading {
		return DecisionSpinner
	}
	if s.User == nil {
		return DecisionRedirectLogin
	}
	if adminOnly && !s.IsAdmin {
		return DecisionForbidden
	}
	return DecisionRender
}
