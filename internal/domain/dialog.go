package domain

// DialogState is the per-conversation configuration dialog state. It is
// deliberately separate from the connection's SessionPhase: one is scoped
// to a sender, the other to the whole process.
type DialogState int

const (
	// DialogNormal is the resting state; ordinary messages are relayed.
	DialogNormal DialogState = iota
	// DialogAwaitingChoice means the 1/2 configuration menu was shown.
	DialogAwaitingChoice
	// DialogAwaitingEmail means option 1 was chosen and the next input is
	// expected to be an email address. Only reachable from DialogAwaitingChoice.
	DialogAwaitingEmail
)

func (s DialogState) String() string {
	switch s {
	case DialogNormal:
		return "normal"
	case DialogAwaitingChoice:
		return "awaiting_choice"
	case DialogAwaitingEmail:
		return "awaiting_email"
	default:
		return "unknown"
	}
}
