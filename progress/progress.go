// Package progress composes independently reported progress streams into a
// single normalized [0,1] signal using fixed weight intervals.
package progress

import "sync"

// Reporter receives a completion fraction in [0,1].
type Reporter interface {
	Report(fraction float64)
}

// Func adapts a plain function to the Reporter interface.
type Func func(fraction float64)

func (f Func) Report(fraction float64) { f(fraction) }

// Discard is a Reporter that drops every report.
var Discard Reporter = Func(func(float64) {})

// Mux fans weighted sub-interval reporters into one downstream Reporter.
// Splits created from the same Mux may report concurrently from different
// goroutines; the downstream reporter is invoked under a shared mutex and
// every forwarded value stays inside the split's own [start, start+width]
// interval, so interleaving can never push the downstream value outside
// [0,1] as long as the allocated intervals do.
type Mux struct {
	mu  sync.Mutex
	out Reporter
}

// NewMux wraps the downstream reporter. A nil reporter is replaced with
// Discard.
func NewMux(out Reporter) *Mux {
	if out == nil {
		out = Discard
	}
	return &Mux{out: out}
}

// Split reserves the interval [start, start+width] of the downstream range
// and returns a reporter for it. A local fraction f in [0,1] is forwarded as
// start + f*width; out-of-range local fractions are clamped to the interval
// bounds.
func (m *Mux) Split(start, width float64) Reporter {
	return &split{mux: m, start: start, width: width}
}

type split struct {
	mux   *Mux
	start float64
	width float64
}

func (s *split) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	s.mux.out.Report(s.start + fraction*s.width)
}
