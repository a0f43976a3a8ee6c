// Package quoting holds the small strategy-adjacent collaborators the
// brokers consume: the quoting parameters repository, the fair-value
// engine and the active-quote registry. The quoting strategy itself
// (deciding prices and sizes) lives outside this module.
package quoting

import (
	"fmt"

	"github.com/ctubio/tribeca/internal/event"
)

// Mode selects the quoting style. Boomerang and AK47 are the two modes
// that pair fills with the ping-pong matcher.
type Mode int

const (
	ModeTop Mode = iota
	ModeMid
	ModeJoin
	ModeBoomerang
	ModeAK47
)

func (m Mode) String() string {
	switch m {
	case ModeTop:
		return "Top"
	case ModeMid:
		return "Mid"
	case ModeJoin:
		return "Join"
	case ModeBoomerang:
		return "Boomerang"
	case ModeAK47:
		return "AK47"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// UsesPingPong reports whether fills in this mode feed the trade-pairing
// algorithm.
func (m Mode) UsesPingPong() bool {
	return m == ModeBoomerang || m == ModeAK47
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "Top":
		return ModeTop, nil
	case "Mid":
		return ModeMid, nil
	case "Join":
		return ModeJoin, nil
	case "Boomerang":
		return ModeBoomerang, nil
	case "AK47":
		return ModeAK47, nil
	}
	return ModeTop, fmt.Errorf("unknown quoting mode %q", s)
}

// PongAt is the tie-break policy when several opposite-side trades can
// counter a fill: nearest price first, or the "long ping" orderings that
// prefer the most aggressively priced candidate.
type PongAt int

const (
	PongAtShortPingFair PongAt = iota
	PongAtShortPingAggressive
	PongAtLongPingFair
	PongAtLongPingAggressive
)

func (p PongAt) String() string {
	switch p {
	case PongAtShortPingFair:
		return "ShortPingFair"
	case PongAtShortPingAggressive:
		return "ShortPingAggressive"
	case PongAtLongPingFair:
		return "LongPingFair"
	case PongAtLongPingAggressive:
		return "LongPingAggressive"
	}
	return fmt.Sprintf("PongAt(%d)", int(p))
}

// IsLongPing reports whether candidates sort most-aggressive first.
func (p PongAt) IsLongPing() bool {
	return p == PongAtLongPingFair || p == PongAtLongPingAggressive
}

// ParsePongAt converts a config string into a PongAt.
func ParsePongAt(s string) (PongAt, error) {
	switch s {
	case "ShortPingFair":
		return PongAtShortPingFair, nil
	case "ShortPingAggressive":
		return PongAtShortPingAggressive, nil
	case "LongPingFair":
		return PongAtLongPingFair, nil
	case "LongPingAggressive":
		return PongAtLongPingAggressive, nil
	}
	return PongAtShortPingFair, fmt.Errorf("unknown pongAt %q", s)
}

// Parameters are the runtime-tunable quoting knobs the brokers read.
type Parameters struct {
	Mode             Mode
	PongAt           PongAt
	WidthPong        float64
	CancelOrdersAuto bool
}

// ParametersRepository holds the latest Parameters and notifies on change.
type ParametersRepository struct {
	NewParameters event.Evt[Parameters]

	latest Parameters
}

// NewParametersRepository creates a repository seeded with initial.
func NewParametersRepository(initial Parameters) *ParametersRepository {
	return &ParametersRepository{latest: initial}
}

// Latest returns the current parameters.
func (r *ParametersRepository) Latest() Parameters {
	return r.latest
}

// Update replaces the parameters and notifies listeners.
func (r *ParametersRepository) Update(p Parameters) {
	r.latest = p
	r.NewParameters.Trigger(p)
}
