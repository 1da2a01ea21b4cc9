package router

import (
	"encoding/json"
	"strings"
)

// Sentinel is the fixed phrase the model is instructed to emit when the
// document cannot answer the question. Matching is case-insensitive and its
// presence overrides any reported confidence.
const Sentinel = "not stated in document"

// Verdict is the parsed outcome of a structured model response.
type Verdict struct {
	// Raw is the unmodified model output.
	Raw string

	// ParseFailed is set when Raw contained no parseable JSON object. The
	// other fields are then empty and Raw itself is the answer.
	ParseFailed bool

	// PlainAnswer is the model's answer text for a non-lawyer.
	PlainAnswer string

	// Confidence is the model's self-reported label, High when absent.
	Confidence string
}

// Escalate reports whether the verdict demands a fallback source: the model
// said Low, or the plain answer contains the sentinel phrase.
func (v Verdict) Escalate() bool {
	if v.ParseFailed {
		return false
	}
	if strings.EqualFold(v.Confidence, "low") {
		return true
	}
	return strings.Contains(strings.ToLower(v.PlainAnswer), Sentinel)
}

// structuredResponse mirrors the JSON shape the strict prompt demands.
type structuredResponse struct {
	Response struct {
		PlainAnswer string `json:"PLAIN ANSWER"`
		Assessment  struct {
			Confidence string `json:"CONFIDENCE"`
		} `json:"ASSESSMENT"`
	} `json:"response"`
}

// ParseVerdict extracts the structured verdict from raw model output. The
// JSON object is located as the span from the first "{" to the last "}",
// which tolerates prose or code fences around it. Anything unparseable
// yields a ParseFailed verdict, never an error.
func ParseVerdict(raw string) Verdict {
	v := Verdict{Raw: raw}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		v.ParseFailed = true
		return v
	}

	var parsed structuredResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		v.ParseFailed = true
		return v
	}

	v.PlainAnswer = parsed.Response.PlainAnswer
	v.Confidence = parsed.Response.Assessment.Confidence
	if v.Confidence == "" {
		v.Confidence = "High"
	}
	return v
}
