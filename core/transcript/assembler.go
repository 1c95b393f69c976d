// Package transcript turns streamed transcription fragments into finalized
// transcript messages at turn boundaries.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-trial/core/trial"
)

type Channel int

const (
	// ChannelInput carries transcription of the user's microphone audio.
	ChannelInput Channel = iota
	// ChannelOutput carries transcription of the synthesized opponent audio.
	ChannelOutput
)

func (c Channel) sender() trial.Sender {
	if c == ChannelInput {
		return trial.SenderUser
	}
	return trial.SenderOpponent
}

// Assembler keeps one accumulation buffer per channel. Partial text never
// leaves the assembler; only TurnComplete produces messages.
type Assembler struct {
	mu      sync.Mutex
	buffers [2]strings.Builder

	now   func() time.Time
	newID func() string
}

func NewAssembler() *Assembler {
	return &Assembler{now: time.Now, newID: uuid.NewString}
}

func (a *Assembler) AppendFragment(channel Channel, text string) {
	if channel != ChannelInput && channel != ChannelOutput {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffers[channel].WriteString(text)
}

// TurnComplete finalizes every non-blank buffer into a message, user channel
// first, and empties the buffers. Whitespace-only buffers are discarded
// without producing a message.
func (a *Assembler) TurnComplete() []trial.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	var messages []trial.Message
	for _, channel := range []Channel{ChannelInput, ChannelOutput} {
		text := a.buffers[channel].String()
		a.buffers[channel].Reset()
		if strings.TrimSpace(text) == "" {
			continue
		}

		messages = append(messages, trial.Message{
			ID:        a.newID(),
			Sender:    channel.sender(),
			Text:      text,
			Timestamp: a.now(),
		})
	}

	return messages
}

// Pending returns the current buffered text of a channel.
func (a *Assembler) Pending(channel Channel) string {
	if channel != ChannelInput && channel != ChannelOutput {
		return ""
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffers[channel].String()
}

func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffers[ChannelInput].Reset()
	a.buffers[ChannelOutput].Reset()
}
