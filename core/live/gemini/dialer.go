// Package gemini connects live sessions to the Gemini Live API.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/live"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Puck"
)

// NewClient creates a Gemini API client whose REST calls are traced.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

type Dialer struct {
	client *genai.Client

	received metric.Int64Counter
}

func NewDialer(client *genai.Client) *Dialer {
	received, err := meter.Int64Counter("live.server_messages",
		metric.WithDescription("Server messages received from the Live API"))
	if err != nil {
		logger.Warn("failed to create server message counter", "error", err)
	}
	return &Dialer{client: client, received: received}
}

func (d *Dialer) Dial(ctx context.Context, config live.Config) (live.Transport, error) {
	ctx, span := tracer.Start(ctx, "dial gemini live")
	defer span.End()

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	span.SetAttributes(attribute.String("gemini.model", model))

	session, err := d.client.Live.Connect(ctx, model, connectConfig(config))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to connect to %s: %w", model, err)
	}

	logger.Info("gemini live session opened", "model", model)
	return &transport{session: session, received: d.received}, nil
}

type transport struct {
	session  *genai.Session
	received metric.Int64Counter
}

func (t *transport) SendRealtimeInput(chunk audio.Chunk) error {
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: chunk.Data, MIMEType: chunk.MIMEType},
	})
}

func (t *transport) SendToolResponse(responses ...live.ToolResponse) error {
	functionResponses := make([]*genai.FunctionResponse, 0, len(responses))
	for _, response := range responses {
		functionResponses = append(functionResponses, &genai.FunctionResponse{
			ID:       response.ID,
			Name:     response.Name,
			Response: response.Response,
		})
	}
	return t.session.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: functionResponses})
}

func (t *transport) Receive() (*live.ServerEvent, error) {
	message, err := t.session.Receive()
	if err != nil {
		return nil, err
	}
	if t.received != nil {
		t.received.Add(context.Background(), 1)
	}

	event := toServerEvent(message)
	if event.IsEmpty() {
		// Setup acknowledgements, usage reports and the like.
		return nil, nil
	}
	return &event, nil
}

func (t *transport) Close() error {
	return t.session.Close()
}
