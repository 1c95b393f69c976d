package live

import "github.com/koscakluka/ema-trial/core/audio"

// ServerEvent is one logical message from the remote session. Any subset of
// the fields may be set; consumers handle every present field.
type ServerEvent struct {
	// Audio holds synthesized speech chunks in the order they were produced.
	Audio []audio.Chunk
	// InputTranscript is a fragment of the user's speech transcription.
	InputTranscript *string
	// OutputTranscript is a fragment of the synthesized speech transcription.
	OutputTranscript *string
	// Interrupted reports that the model stopped speaking because the user
	// barged in; queued output audio is stale.
	Interrupted bool
	// TurnComplete marks the end of the model's turn.
	TurnComplete bool
	ToolCalls    []ToolCallRequest
}

func (e ServerEvent) IsEmpty() bool {
	return len(e.Audio) == 0 &&
		e.InputTranscript == nil &&
		e.OutputTranscript == nil &&
		!e.Interrupted &&
		!e.TurnComplete &&
		len(e.ToolCalls) == 0
}

// ToolCallRequest is a function call the model expects an answer to. Every
// request must be answered exactly once with a [ToolResponse] carrying the
// same ID.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// ToolDeclaration describes a callable tool at handshake time. Parameters is
// a JSON schema document.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  any
}

// Config is the handshake configuration of a session.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string
	Tools             []ToolDeclaration

	InputTranscription  bool
	OutputTranscription bool
}
