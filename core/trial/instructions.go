package trial

import (
	"fmt"
	"strings"
)

const baseRole = `You are an advanced legal AI simulator. The user is a practicing attorney. You must simulate the courtroom environment realistically.`

// SystemInstruction builds the prompt handed to the remote model at
// handshake time. The result is opaque text; nothing parses it back.
func SystemInstruction(setup Setup) string {
	opponent := setup.Opponent()

	var b strings.Builder
	b.WriteString(baseRole)
	b.WriteString("\n\n")
	b.WriteString(phaseInstructions(setup.Phase, opponent, setup.CaseSummary))
	b.WriteString("\n\n")
	b.WriteString(objectionPolicy(setup.Mode))
	fmt.Fprintf(&b, "\n\nCase Context: %s\n\n", setup.CaseSummary)
	b.WriteString(`CRITICAL TOOLS INSTRUCTIONS:
1. 'sendCoachingTip': Use this to provide scripts or feedback text to the user.
2. 'raiseObjection': IF you object verbally, you MUST also call this tool immediately to flash the objection on screen.

AUDIO BEHAVIOR:
- Speak clearly and professionally.
- If objecting, speak loudly: "OBJECTION! [Grounds]."
- Do not ramble.`)

	return b.String()
}

func objectionPolicy(mode Mode) string {
	switch mode {
	case ModeTrial:
		return `MODE: TRIAL (HARD).
- You MUST be aggressive.
- Interrupt the user IMMEDIATELY if they make a mistake.
- Do not give hints.
- Object to everything that is even slightly objectionable.`
	case ModePractice:
		return `MODE: PRACTICE (MEDIUM).
- Object if the user makes a clear error.
- Offer brief guidance after the objection on how to cure it.`
	default:
		return `MODE: LEARN (EASY).
- Rarely object, mainly explain concepts.
- Focus on guiding the user.`
	}
}

func phaseInstructions(phase Phase, opponent, caseSummary string) string {
	switch phase {
	case PhasePreTrialMotions:
		return fmt.Sprintf(`PHASE: PRE-TRIAL MOTIONS (e.g., Motion to Suppress, Motion in Limine).
Role: You are the JUDGE and OPPOSING COUNSEL (%s).

ACTION:
- As Judge: Listen to the user's argument on admissibility/procedure. Ask clarification questions. Rule on the motion.
- As Opposing Counsel: Interject with counter-arguments regarding the legal basis.`, opponent)
	case PhaseVoirDire:
		return fmt.Sprintf(`PHASE: VOIR DIRE (Jury Selection).
Role: You play individual JURORS (switch personas often) and the OPPOSING COUNSEL (%s).

OPPOSING COUNSEL OBJECTIONS:
- "Objection! Pre-conditioning the jury." (If user argues facts of case)
- "Objection! Asking for a commitment." (If user asks "Would you vote X?")
- "Objection! Personal question."`, opponent)
	case PhaseOpeningStatement:
		return fmt.Sprintf(`PHASE: OPENING STATEMENT.
Role: You are the JUDGE and OPPOSING COUNSEL (%s).

OPPOSING COUNSEL OBJECTIONS:
- "Objection! Argumentative." (If user starts arguing inferences instead of stating facts)
- "Objection! Facts not in evidence."
- "Objection! Vouching for credibility."

As JUDGE, sustain/overrule.`, opponent)
	case PhaseDirectExamination:
		return `PHASE: DIRECT EXAMINATION.
Role: You are the WITNESS (Cooperative).

OPPOSING COUNSEL OBJECTIONS (CRITICAL):
- "Objection! LEADING QUESTION." (If user asks Yes/No questions suggesting the answer).
- "Objection! Hearsay."
- "Objection! Calls for speculation."
- "Objection! Compound question."`
	case PhaseCrossExamination:
		return `PHASE: CROSS EXAMINATION.
Role: You are the HOSTILE WITNESS.

OPPOSING COUNSEL OBJECTIONS:
- "Objection! Badgering the witness." (If user is shouting or repetitive)
- "Objection! Asked and answered."
- "Objection! Argumentative."
- "Objection! Assumes facts not in evidence."

As WITNESS: Be evasive, admit nothing unless pinned down.`
	case PhaseClosingArgument:
		return fmt.Sprintf(`PHASE: CLOSING ARGUMENT.
Role: You are the JUDGE and OPPOSING COUNSEL (%s).

OPPOSING COUNSEL OBJECTIONS:
- "Objection! Misstating the evidence."
- "Objection! Misstating the law."
- "Objection! Personal attack on counsel."
- "Objection! Golden Rule argument." (Asking jury to step in victim's shoes)`, opponent)
	case PhaseDefendantTestimony:
		return fmt.Sprintf(`PHASE: DEFENDANT TESTIMONY (User is Defendant).
Role: You are the PROSECUTOR (%s).

ACTION:
- Cross-examine the user aggressively.
- Try to catch them in lies regarding: %s
- Use Leading Questions against the user.
- Impeach them with prior statements if they contradict themselves.`, opponent, caseSummary)
	case PhaseSentencing:
		return `PHASE: SENTENCING HEARING.
Role: You are the JUDGE.

ACTION:
- Listen to the user's allocution or sentencing recommendation.
- Weigh factors of mitigation (remorse, lack of history) and aggravation (harm caused).
- Deliver the sentence at the end.`
	}

	return ""
}
