package trial

import (
	"strings"
	"testing"
)

func TestSystemInstructionCoversEveryPhaseAndMode(t *testing.T) {
	for _, phase := range Phases {
		for _, mode := range Modes {
			instruction := SystemInstruction(Setup{
				Phase:        phase,
				Mode:         mode,
				OpponentName: "Jane Roe",
				CaseSummary:  "State v. Doe, burglary charge",
			})

			if !strings.HasPrefix(instruction, baseRole) {
				t.Fatalf("%s/%s: expected instruction to start with the role preamble", phase, mode)
			}
			if !strings.Contains(instruction, "PHASE: ") {
				t.Fatalf("%s/%s: expected a phase section", phase, mode)
			}
			if !strings.Contains(instruction, "MODE: "+strings.ToUpper(string(mode))) {
				t.Fatalf("%s/%s: expected mode policy for %q", phase, mode, mode)
			}
			if !strings.Contains(instruction, "Case Context: State v. Doe, burglary charge") {
				t.Fatalf("%s/%s: expected case summary in instruction", phase, mode)
			}
			if !strings.Contains(instruction, "'raiseObjection'") || !strings.Contains(instruction, "'sendCoachingTip'") {
				t.Fatalf("%s/%s: expected tool instructions", phase, mode)
			}
		}
	}
}

func TestSystemInstructionNamesOpponentWherePhaseHasCounsel(t *testing.T) {
	instruction := SystemInstruction(Setup{Phase: PhaseClosingArgument, Mode: ModeTrial, OpponentName: "Jane Roe"})
	if !strings.Contains(instruction, "OPPOSING COUNSEL (Jane Roe)") {
		t.Fatalf("expected opponent name in closing argument instruction, got:\n%s", instruction)
	}

	instruction = SystemInstruction(Setup{Phase: PhaseDefendantTestimony, Mode: ModeTrial, OpponentName: "Unknown", CaseSummary: "the missing ledger"})
	if !strings.Contains(instruction, "PROSECUTOR ("+DefaultOpponentName+")") {
		t.Fatalf("expected default opponent for placeholder name, got:\n%s", instruction)
	}
	if !strings.Contains(instruction, "catch them in lies regarding: the missing ledger") {
		t.Fatalf("expected defendant testimony to reference case context")
	}
}

func TestPhaseAndModeValidation(t *testing.T) {
	if !PhaseDirectExamination.Valid() || Phase("arraignment").Valid() {
		t.Fatalf("unexpected phase validation result")
	}
	if !ModePractice.Valid() || Mode("casual").Valid() {
		t.Fatalf("unexpected mode validation result")
	}
	if got := PhaseVoirDire.Label(); got != "Voir Dire" {
		t.Fatalf("unexpected label %q", got)
	}
	if len(Phases) != 8 || len(Modes) != 3 {
		t.Fatalf("expected 8 phases and 3 modes, got %d and %d", len(Phases), len(Modes))
	}
}

func TestSetupOpponentFallback(t *testing.T) {
	cases := map[string]string{
		"":             DefaultOpponentName,
		"  ":           DefaultOpponentName,
		"Unknown":      DefaultOpponentName,
		"Saul Goodman": "Saul Goodman",
	}
	for name, want := range cases {
		if got := (Setup{OpponentName: name}).Opponent(); got != want {
			t.Fatalf("opponent %q: expected %q, got %q", name, want, got)
		}
	}
}
