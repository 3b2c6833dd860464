package moderation

// Action is the fixed set of interventions the pipeline can decide on.
type Action string

const (
	ActionNone       Action = "none"
	ActionMask       Action = "mask"
	ActionDeleteWarn Action = "delete_warn"
	ActionShadowban  Action = "shadowban"
	ActionEscalate   Action = "escalate"
	ActionWarning    Action = "warning"
	ActionTempMute   Action = "temp_mute"
	ActionTempBan    Action = "temp_ban"
)

var allActions = map[Action]bool{
	ActionNone:       true,
	ActionMask:       true,
	ActionDeleteWarn: true,
	ActionShadowban:  true,
	ActionEscalate:   true,
	ActionWarning:    true,
	ActionTempMute:   true,
	ActionTempBan:    true,
}

// ParseAction validates a raw string against the action enum. Unknown values
// return (ActionNone, false) rather than an error, matching the fail-safe
// handling of model output.
func ParseAction(raw string) (Action, bool) {
	a := Action(raw)
	if allActions[a] {
		return a, true
	}
	return ActionNone, false
}

// PenaltyLevel is the escalating severity tier derived from accumulated
// rate-limit violations.
type PenaltyLevel string

const (
	PenaltyNone     PenaltyLevel = "none"
	PenaltyWarning  PenaltyLevel = "warning"
	PenaltyTempMute PenaltyLevel = "temp_mute"
	PenaltyTempBan  PenaltyLevel = "temp_ban"
)

// Action maps a penalty level to the concrete action the executor applies.
func (p PenaltyLevel) Action() Action {
	switch p {
	case PenaltyWarning:
		return ActionWarning
	case PenaltyTempMute:
		return ActionTempMute
	case PenaltyTempBan:
		return ActionTempBan
	default:
		return ActionNone
	}
}
