package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-trial/core/live"
	"github.com/koscakluka/ema-trial/core/trial"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrToolCallMalformed reports arguments that do not match the declared
	// schema. The call is still displayed with defaults and acknowledged.
	ErrToolCallMalformed = errors.New("malformed tool call")
	ErrUnknownToolName   = errors.New("unknown tool name")
)

const DefaultRhetoricalEffectiveness = 50

// Acknowledger carries tool responses back to the model. It must not block.
type Acknowledger interface {
	RespondToTool(id, name string, result map[string]any) error
}

// Display receives the visible effects of tool calls.
type Display interface {
	SetCoaching(analysis trial.CoachingAnalysis)
	SetObjection(alert trial.ObjectionAlert)
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher applies tool calls to a display and acknowledges each of them
// exactly once.
type Dispatcher struct {
	display Display
	ack     Acknowledger
	now     func() time.Time

	coachingRequired []string
}

func NewDispatcher(display Display, ack Acknowledger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		display:          display,
		ack:              ack,
		now:              time.Now,
		coachingRequired: requiredFields(reflectSchema(CoachingTipArgs{})),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles a batch of calls in order. Every distinct call ID is
// acknowledged once before Dispatch returns; the returned error joins any
// acknowledgement failures.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []live.ToolCallRequest) error {
	acknowledged := make(map[string]struct{}, len(calls))
	var errs []error

	for _, call := range calls {
		if _, ok := acknowledged[call.ID]; ok {
			logger.Warn("duplicate tool call id in batch, ignoring", "id", call.ID, "name", call.Name)
			continue
		}

		result := d.handle(ctx, call)
		if err := d.ack.RespondToTool(call.ID, call.Name, result); err != nil {
			errs = append(errs, fmt.Errorf("failed to acknowledge tool call %q: %w", call.ID, err))
		}
		acknowledged[call.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) handle(ctx context.Context, call live.ToolCallRequest) map[string]any {
	_, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name), attribute.String("tool.id", call.ID))

	switch call.Name {
	case NameCoachingTip:
		analysis, err := d.coachingFrom(call.Args)
		if err != nil {
			err = fmt.Errorf("tool %q: %w", call.Name, err)
			span.RecordError(err)
			logger.Warn("displaying coaching tip with defaults", "error", err)
		}
		d.display.SetCoaching(analysis)
		return map[string]any{"result": "displayed"}

	case NameRaiseObjection:
		var args ObjectionArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			err = fmt.Errorf("tool %q: %w", call.Name, err)
			span.RecordError(err)
			logger.Warn("raising objection from partial arguments", "error", err)
		}
		d.display.SetObjection(trial.ObjectionAlert{
			Grounds:     args.Grounds,
			Explanation: args.Explanation,
			RaisedAt:    d.now(),
		})
		return map[string]any{"result": "alert_shown"}

	default:
		err := fmt.Errorf("%w: %s", ErrUnknownToolName, call.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("acknowledging unhandled tool call", "error", err, "id", call.ID)
		return map[string]any{"result": "unhandled"}
	}
}

func (d *Dispatcher) coachingFrom(raw map[string]any) (trial.CoachingAnalysis, error) {
	var errs []error

	var args CoachingTipArgs
	if err := decodeArgs(raw, &args); err != nil {
		errs = append(errs, err)
	}

	var missing []string
	for _, field := range d.coachingRequired {
		if value, ok := raw[field].(string); !ok || value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: missing %s", ErrToolCallMalformed, strings.Join(missing, ", ")))
	}

	var analysis trial.CoachingAnalysis
	if err := copier.Copy(&analysis, &args); err != nil {
		errs = append(errs, fmt.Errorf("failed to map coaching arguments: %w", err))
	}

	if analysis.FallaciesIdentified == nil {
		analysis.FallaciesIdentified = []string{}
	}
	analysis.RhetoricalEffectiveness = DefaultRhetoricalEffectiveness
	if _, ok := raw["rhetoricalEffectiveness"].(float64); ok && args.RhetoricalEffectiveness != nil {
		analysis.RhetoricalEffectiveness = min(max(*args.RhetoricalEffectiveness, 0), 100)
	}

	return analysis, errors.Join(errs...)
}

// decodeArgs fills target from loosely typed arguments. Fields of the wrong
// type are skipped and reported as malformed.
func decodeArgs(raw map[string]any, target any) error {
	if raw == nil {
		return fmt.Errorf("%w: no arguments", ErrToolCallMalformed)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolCallMalformed, err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("%w: %w", ErrToolCallMalformed, err)
	}
	return nil
}
