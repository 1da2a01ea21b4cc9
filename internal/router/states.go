// Package router decides where an answer comes from. A question is first
// answered against the user's document; if the model reports low confidence
// or the fixed "not stated in document" sentinel, the router escalates to the
// general knowledge index and finally to a web search. An answer is either
// document-grounded or web-grounded, never a blend, and the web path
// discloses itself in the answer text.
//
// The routing policy is a pure state machine: Transition takes the current
// state and an observed event and returns the next state plus the side
// effect the caller must execute. No I/O happens inside Transition, which is
// what makes the policy testable without a model or network.
package router

import (
	"fmt"
	"strings"
)

// State is a routing state. StateAccepted is the only terminal state.
type State int

const (
	StateStart State = iota
	StateRagAttempt
	StateNeedsEscalation
	StateWebSearch
	StateWebAnswer
	StateAccepted
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateRagAttempt:
		return "rag_attempt"
	case StateNeedsEscalation:
		return "needs_escalation"
	case StateWebSearch:
		return "web_search"
	case StateWebAnswer:
		return "web_answer"
	case StateAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source identifies what an answer is grounded in.
type Source int

const (
	SourceDocument Source = iota
	SourceGeneralKnowledge
	SourceWeb
)

// String returns the source name for logs and API responses.
func (s Source) String() string {
	switch s {
	case SourceDocument:
		return "document"
	case SourceGeneralKnowledge:
		return "general_knowledge"
	case SourceWeb:
		return "web"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// WebAnswerPrefix is the disclosure every web-grounded answer starts with.
const WebAnswerPrefix = "That information was not in your document, so I performed a web search. Here is what I found:"

// EventKind discriminates Event payloads.
type EventKind int

const (
	// EventQuery starts a routing run.
	EventQuery EventKind = iota

	// EventRagVerdict carries the parsed verdict of the document-grounded
	// model call.
	EventRagVerdict

	// EventGeneralVerdict carries the verdict of the general knowledge
	// call, or Miss when that index had nothing to offer.
	EventGeneralVerdict

	// EventWebContext carries formatted web search snippets.
	EventWebContext

	// EventWebAnswer carries the web model's plain-text answer.
	EventWebAnswer
)

// Event is an observation fed into Transition.
type Event struct {
	Kind EventKind

	// Verdict is set for EventRagVerdict and EventGeneralVerdict.
	Verdict Verdict

	// Miss marks an EventGeneralVerdict where retrieval found no records.
	Miss bool

	// WebContext is set for EventWebContext.
	WebContext string

	// WebAnswer is set for EventWebAnswer.
	WebAnswer string
}

// EffectKind discriminates Effect payloads.
type EffectKind int

const (
	// EffectAskDocument tells the caller to retrieve document chunks and
	// ask the model for a structured verdict.
	EffectAskDocument EffectKind = iota

	// EffectConsultGeneral tells the caller to retry the structured ask
	// against the general knowledge index.
	EffectConsultGeneral

	// EffectSearchWeb tells the caller to run the web search with the
	// original query.
	EffectSearchWeb

	// EffectAskWeb tells the caller to ask the model for a plain-text
	// answer over the web snippets only.
	EffectAskWeb

	// EffectDeliver carries the final answer. The machine is terminal.
	EffectDeliver
)

// Effect is the side effect the caller must execute after a transition.
type Effect struct {
	Kind EffectKind

	// Answer is set for EffectDeliver.
	Answer Answer

	// WebContext is set for EffectAskWeb.
	WebContext string
}

// Answer is the machine's final output.
type Answer struct {
	Text   string
	Source Source
}

// Transition applies one event to the current state and returns the next
// state and the effect to execute. It performs no I/O. An event that is not
// valid in the current state is an error; callers drive the machine, so this
// only fires on a driver bug.
func Transition(state State, ev Event) (State, Effect, error) {
	switch {
	case state == StateStart && ev.Kind == EventQuery:
		return StateRagAttempt, Effect{Kind: EffectAskDocument}, nil

	case state == StateRagAttempt && ev.Kind == EventRagVerdict:
		if ev.Verdict.ParseFailed {
			// A malformed response never blocks: the raw text is the answer.
			return StateAccepted, deliver(ev.Verdict.Raw, SourceDocument), nil
		}
		if ev.Verdict.Escalate() {
			return StateNeedsEscalation, Effect{Kind: EffectConsultGeneral}, nil
		}
		return StateAccepted, deliver(ev.Verdict.PlainAnswer, SourceDocument), nil

	case state == StateNeedsEscalation && ev.Kind == EventGeneralVerdict:
		if !ev.Miss && !ev.Verdict.ParseFailed && !ev.Verdict.Escalate() {
			return StateAccepted, deliver(ev.Verdict.PlainAnswer, SourceGeneralKnowledge), nil
		}
		return StateWebSearch, Effect{Kind: EffectSearchWeb}, nil

	case state == StateWebSearch && ev.Kind == EventWebContext:
		return StateWebAnswer, Effect{Kind: EffectAskWeb, WebContext: ev.WebContext}, nil

	case state == StateWebAnswer && ev.Kind == EventWebAnswer:
		text := strings.TrimSpace(ev.WebAnswer)
		if !strings.HasPrefix(text, WebAnswerPrefix) {
			text = WebAnswerPrefix + "\n\n" + text
		}
		return StateAccepted, deliver(text, SourceWeb), nil
	}

	return state, Effect{}, fmt.Errorf("router: event %d not valid in state %s", ev.Kind, state)
}

func deliver(text string, source Source) Effect {
	return Effect{Kind: EffectDeliver, Answer: Answer{Text: text, Source: source}}
}
