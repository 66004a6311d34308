package session

// State is the controller's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateAwaitingPrompt is Connected with an operator prompt open.
	StateAwaitingPrompt
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAwaitingPrompt:
		return "awaiting operator"
	default:
		return "disconnected"
	}
}

// PromptKind identifies which transaction a prompt belongs to.
type PromptKind int

const (
	PromptRedemption PromptKind = iota
	PromptBillPay
)

func (k PromptKind) String() string {
	if k == PromptBillPay {
		return "bill pay"
	}
	return "redemption"
}
