// Package tools declares the functions the opposing counsel model may call and
// dispatches its calls onto the on-screen state.
package tools

import (
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-trial/core/live"
)

const (
	NameCoachingTip    = "sendCoachingTip"
	NameRaiseObjection = "raiseObjection"
)

// CoachingTipArgs are the arguments of [NameCoachingTip]. Fields without
// omitempty are required.
type CoachingTipArgs struct {
	Critique                string   `json:"critique" jsonschema_description:"Critique of what user just said."`
	Suggestion              string   `json:"suggestion" jsonschema_description:"Strategic advice."`
	SampleResponse          string   `json:"sampleResponse,omitempty" jsonschema_description:"Short rebuttal."`
	TeleprompterScript      string   `json:"teleprompterScript" jsonschema_description:"A longer script, bullet points, or question list for the user to read/reference."`
	FallaciesIdentified     []string `json:"fallaciesIdentified,omitempty"`
	RhetoricalEffectiveness *float64 `json:"rhetoricalEffectiveness,omitempty"`
	RhetoricalFeedback      string   `json:"rhetoricalFeedback,omitempty"`
}

type ObjectionArgs struct {
	Grounds     string `json:"grounds" jsonschema_description:"The legal grounds (e.g. Hearsay, Leading)."`
	Explanation string `json:"explanation" jsonschema_description:"Brief explanation of why it is objectionable."`
}

// Declarations returns the tools announced to the model at handshake.
func Declarations() []live.ToolDeclaration {
	return []live.ToolDeclaration{
		{
			Name:        NameCoachingTip,
			Description: "Send text-based coaching, feedback, or a suggested script for the user to read. Use this FREQUENTLY.",
			Parameters:  reflectSchema(CoachingTipArgs{}),
		},
		{
			Name:        NameRaiseObjection,
			Description: "Trigger a visual OBJECTION alert on screen. Call this whenever you verbally object.",
			Parameters:  reflectSchema(ObjectionArgs{}),
		},
	}
}

func reflectSchema(args any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: true}
	schema := reflector.ReflectFromType(reflect.TypeOf(args))
	// The Live API rejects draft and id keywords.
	schema.Version = ""
	schema.ID = ""
	return schema
}

// requiredFields lists the JSON names of the required fields of a schema.
func requiredFields(schema *jsonschema.Schema) []string {
	return append([]string(nil), schema.Required...)
}
