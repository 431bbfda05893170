// Package guard decides what a protected route shows for a session.
package guard

import "trading-terminal-go/internal/session"

// Kind is what the guard tells the caller to do.
type Kind int

const (
	// Loading shows a placeholder; the session probe has not resolved.
	Loading Kind = iota
	// Render shows the requested content.
	Render
	// Redirect sends the user to To.
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Outcome is the guard's decision. From keeps the requested location on a
// redirect so sign-in can return to it.
type Outcome struct {
	Kind Kind
	To   string
	From string
}

// Evaluate decides what requested shows for s. It never redirects while the
// probe is pending and never renders protected content without a session.
func Evaluate(s session.Session, requested string) Outcome {
	target := Canonical(requested)
	switch {
	case s.Loading:
		return Outcome{Kind: Loading, From: target}
	case !Protected(target) || s.Authenticated:
		return Outcome{Kind: Render, To: target}
	default:
		return Outcome{Kind: Redirect, To: RouteAuth, From: target}
	}
}

// Apply evaluates requested and performs any redirect on nav.
func Apply(s session.Session, requested string, nav session.Navigator) Outcome {
	out := Evaluate(s, requested)
	if out.Kind == Redirect {
		nav.Replace(out.To)
	}
	return out
}
