package router

import (
	"fmt"

	"github.com/AniketAslaliya/crewmate-go/internal/budget"
)

// maxContextChars bounds the document excerpt section of the strict prompt.
// Longer contexts keep their head and tail with the middle elided.
const maxContextChars = 5000

const strictSystemPrompt = `You are a meticulous document assistant. Use ONLY the provided document excerpts to answer document-related questions.

However, if the user greets you (e.g., 'hi', 'hello', 'how are you'), respond politely instead of answering from the document.

Return the output strictly as RAW JSON, without code fences, without markdown, without extra text. The JSON structure must be exactly as follows:

{
  "success": true,
  "response": {
    "PLAIN ANSWER": "string - plain English answer for a non-expert.",
    "ASSESSMENT": {
      "CONFIDENCE": "High | Medium | Low",
      "REASON": "string - one short reason"
    },
    "NEXT STEPS": [
      "string - actionable next step 1",
      "string - actionable next step 2"
    ]
  }
}

IMPORTANT RULES - ALWAYS FOLLOW:
- Output must be valid JSON, not a string.
- If the user greets, reply with a friendly message instead of 'Not stated in document'.
- For document questions use ONLY the excerpts. If the answer is not determinable, set 'PLAIN ANSWER' to 'Not stated in document' and DO NOT guess.
- Keep language plain and concise.
- 'NEXT STEPS' must always be 1-2 items.

Document context:
%s

Now answer the user's question succinctly and accurately following the specified format.`

const webAnswerSystemPrompt = `You are a helpful assistant. Your user has asked a question that could not be answered by their uploaded document.
Your task is to answer the user's original question based *only* on the provided web search results.
Rules:
- Synthesize a clear, concise answer to the user's question.
- If the web search results do not provide an answer, state that you could not find the information online.
- Do not mention 'confidence' or the previous document search.
- Your response should be a plain-text answer, not JSON.
- Start the answer with '%s'

WEB SEARCH RESULTS:
%s`

// FallbackSystemPrompt is used when a question arrives with no document
// context at all.
const FallbackSystemPrompt = `No document context provided. You are a document assistant.

If the user question requires the document to answer, reply: 'Cannot determine from available information - please upload the document first.'

If the user asks a general question, answer it briefly and note that the answer is general information, not derived from any document.`

// BuildDocumentPrompt renders the strict JSON system prompt around the given
// document excerpts, truncating oversized context in the middle.
func BuildDocumentPrompt(context string) string {
	if context == "" {
		context = "(no excerpts provided)"
	}
	return fmt.Sprintf(strictSystemPrompt, budget.TruncateMiddle(context, maxContextChars))
}

// BuildWebPrompt renders the plain-text web answer system prompt around the
// formatted search snippets.
func BuildWebPrompt(webContext string) string {
	return fmt.Sprintf(webAnswerSystemPrompt, WebAnswerPrefix, webContext)
}
