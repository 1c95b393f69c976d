// Package trial holds the courtroom domain model shared by the live session
// components: trial phases, simulation modes, transcript messages and the
// side-channel payloads the remote model pushes mid-session.
package trial

import (
	"strings"
	"time"
)

// DefaultOpponentName is used when the case has no named opposing counsel.
const DefaultOpponentName = "David Thorne"

type Phase string

const (
	PhasePreTrialMotions    Phase = "pre-trial-motions"
	PhaseVoirDire           Phase = "voir-dire"
	PhaseOpeningStatement   Phase = "opening-statement"
	PhaseDirectExamination  Phase = "direct-examination"
	PhaseCrossExamination   Phase = "cross-examination"
	PhaseDefendantTestimony Phase = "defendant-testimony"
	PhaseClosingArgument    Phase = "closing-argument"
	PhaseSentencing         Phase = "sentencing"
)

// Phases lists every phase in courtroom order.
var Phases = []Phase{
	PhasePreTrialMotions,
	PhaseVoirDire,
	PhaseOpeningStatement,
	PhaseDirectExamination,
	PhaseCrossExamination,
	PhaseDefendantTestimony,
	PhaseClosingArgument,
	PhaseSentencing,
}

func (p Phase) Valid() bool {
	_, ok := phaseDetails[p]
	return ok
}

func (p Phase) Label() string       { return phaseDetails[p].label }
func (p Phase) Description() string { return phaseDetails[p].description }

type Mode string

const (
	ModeLearn    Mode = "learn"
	ModePractice Mode = "practice"
	ModeTrial    Mode = "trial"
)

var Modes = []Mode{ModeLearn, ModePractice, ModeTrial}

func (m Mode) Valid() bool {
	_, ok := modeDetails[m]
	return ok
}

func (m Mode) Label() string       { return modeDetails[m].label }
func (m Mode) Description() string { return modeDetails[m].description }

// Setup is everything the live session needs to know before connecting.
type Setup struct {
	Phase        Phase
	Mode         Mode
	OpponentName string
	CaseSummary  string
}

// Opponent returns the opposing counsel name, falling back to
// [DefaultOpponentName] for empty or placeholder values.
func (s Setup) Opponent() string {
	name := strings.TrimSpace(s.OpponentName)
	if name == "" || strings.EqualFold(name, "unknown") {
		return DefaultOpponentName
	}
	return name
}

type Sender string

const (
	SenderUser     Sender = "user"
	SenderOpponent Sender = "opponent"
)

// Message is one finalized transcript entry. Text is never a partial
// fragment.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type CoachingAnalysis struct {
	Critique                string   `json:"critique"`
	Suggestion              string   `json:"suggestion"`
	SampleResponse          string   `json:"sampleResponse,omitempty"`
	TeleprompterScript      string   `json:"teleprompterScript,omitempty"`
	FallaciesIdentified     []string `json:"fallaciesIdentified"`
	RhetoricalEffectiveness float64  `json:"rhetoricalEffectiveness"`
	RhetoricalFeedback      string   `json:"rhetoricalFeedback"`
}

type ObjectionAlert struct {
	Grounds     string    `json:"grounds"`
	Explanation string    `json:"explanation"`
	RaisedAt    time.Time `json:"raisedAt"`
}

type details struct {
	label       string
	description string
}

var phaseDetails = map[Phase]details{
	PhasePreTrialMotions:    {"Pre-Trial Motions", "Argue admissibility & procedure"},
	PhaseVoirDire:           {"Voir Dire", "Jury Selection & Questioning"},
	PhaseOpeningStatement:   {"Opening Statement", "Establish your narrative"},
	PhaseDirectExamination:  {"Direct Examination", "Question your witness"},
	PhaseCrossExamination:   {"Cross Examination", "Question hostile witness"},
	PhaseDefendantTestimony: {"Defendant Testimony", "Practice on the stand"},
	PhaseClosingArgument:    {"Closing Argument", "Final persuasion"},
	PhaseSentencing:         {"Sentencing", "Argue for leniency or severity"},
}

var modeDetails = map[Mode]details{
	ModeLearn:    {"Learn", "Guided walkthrough, rare objections"},
	ModePractice: {"Practice", "Objections on clear errors with guidance"},
	ModeTrial:    {"Trial", "Aggressive opposing counsel, no hints"},
}
