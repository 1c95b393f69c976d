package orchestration

import "github.com/koscakluka/ema-trial/core/uistate"

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionConnecting
	SessionLive
	SessionClosing
)

func (s SessionState) String() string {
	return string(s.status())
}

func (s SessionState) status() uistate.Status {
	switch s {
	case SessionConnecting:
		return uistate.StatusConnecting
	case SessionLive:
		return uistate.StatusLive
	case SessionClosing:
		return uistate.StatusClosing
	default:
		return uistate.StatusIdle
	}
}

// accepting reports whether server events should still be applied.
func (s SessionState) accepting() bool {
	return s == SessionConnecting || s == SessionLive
}
