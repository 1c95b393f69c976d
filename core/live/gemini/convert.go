package gemini

import (
	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/live"
	"github.com/koscakluka/ema-trial/internal/utils"
	"google.golang.org/genai"
)

func connectConfig(config live.Config) *genai.LiveConnectConfig {
	voice := config.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	connect := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	if config.SystemInstruction != "" {
		connect.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(config.SystemInstruction)},
		}
	}
	if config.InputTranscription {
		connect.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if config.OutputTranscription {
		connect.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	if len(config.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(config.Tools))
		for _, tool := range config.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.Parameters,
			})
		}
		connect.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return connect
}

func toServerEvent(message *genai.LiveServerMessage) live.ServerEvent {
	var event live.ServerEvent
	if message == nil {
		return event
	}

	if content := message.ServerContent; content != nil {
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				event.Audio = append(event.Audio, audio.Chunk{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				})
			}
		}
		if content.InputTranscription != nil {
			event.InputTranscript = utils.Ptr(content.InputTranscription.Text)
		}
		if content.OutputTranscription != nil {
			event.OutputTranscript = utils.Ptr(content.OutputTranscription.Text)
		}
		event.Interrupted = content.Interrupted
		event.TurnComplete = content.TurnComplete
	}

	if message.ToolCall != nil {
		for _, call := range message.ToolCall.FunctionCalls {
			if call == nil {
				continue
			}
			event.ToolCalls = append(event.ToolCalls, live.ToolCallRequest{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
		}
	}

	return event
}
