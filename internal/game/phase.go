// internal/game/phase.go
package game

// Phase is the current stage of a session's round/turn lifecycle.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoundPending
	PhaseTurnAnnounce
	PhaseWordSelect
	PhaseActive
	PhaseScores
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseRoundPending:
		return "round_pending"
	case PhaseTurnAnnounce:
		return "turn_announce"
	case PhaseWordSelect:
		return "word_select"
	case PhaseActive:
		return "active"
	case PhaseScores:
		return "scores"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
