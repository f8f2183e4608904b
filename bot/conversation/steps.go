// Package conversation drives the per-chat menu dialogue: it maps the stored
// step and the incoming text to outbound messages and the next step.
package conversation

import "strconv"

// Step is the persisted dialogue state of a chat. The integer values are
// stored in conversation_steps.step and must not change.
type Step int

const (
	StepStart             Step = 0
	StepEarningsList      Step = 1
	StepInvitationsChoice Step = 2
	StepOrder             Step = 3
	// 4 is retired.
	StepOrderInputName  Step = 5
	StepOrderInputPhone Step = 6
	StepOrderInputTM    Step = 7
	StepOrderInputEmail Step = 8
)

var stepNames = map[Step]string{
	StepStart:             "start",
	StepEarningsList:      "earnings_list",
	StepInvitationsChoice: "invitations_choice",
	StepOrder:             "order",
	StepOrderInputName:    "order_input_name",
	StepOrderInputPhone:   "order_input_phone",
	StepOrderInputTM:      "order_input_tm",
	StepOrderInputEmail:   "order_input_email",
}

// Steps lists every valid step in code order.
func Steps() []Step {
	return []Step{
		StepStart, StepEarningsList, StepInvitationsChoice, StepOrder,
		StepOrderInputName, StepOrderInputPhone, StepOrderInputTM, StepOrderInputEmail,
	}
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "step_" + strconv.Itoa(int(s))
}
