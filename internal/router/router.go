package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
	"github.com/AniketAslaliya/crewmate-go/internal/websearch"
)

// topK is how many chunks back a document-grounded answer.
const topK = 4

// previewLimit caps how much of one chunk goes into the prompt context.
const previewLimit = 1200

// Completer is the language model call the router needs: a system prompt, a
// user message, one text response.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Searcher is the web search backend. websearch.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Snippet, error)
}

// Citation is one document excerpt an answer is grounded in.
type Citation struct {
	SourceDocument string `json:"source_document"`
	Excerpt        string `json:"excerpt"`
}

// Response is the routed answer returned to the caller.
type Response struct {
	Answer string `json:"answer"`

	// Source is "document", "general_knowledge" or "web".
	Source string `json:"source"`

	// Citations is empty for web-grounded answers.
	Citations []Citation `json:"citations,omitempty"`
}

// Router drives the routing state machine against real dependencies.
type Router struct {
	retriever rag.Retriever
	completer Completer
	search    Searcher
}

// New creates a Router. search may be nil when web search is not configured;
// escalation then degrades to an empty-results web context.
func New(retriever rag.Retriever, completer Completer, search Searcher) *Router {
	return &Router{retriever: retriever, completer: completer, search: search}
}

// Answer routes one question. The namespace scopes document retrieval to the
// caller's thread. Model and retrieval failures on the primary path
// propagate; failures on the escalation path degrade step by step until the
// machine can still terminate.
func (r *Router) Answer(ctx context.Context, query, namespace string) (*Response, error) {
	log := logging.FromContext(ctx)

	state := StateStart
	ev := Event{Kind: EventQuery}

	// Citations follow the source the final answer is grounded in.
	var citations []Citation

	for {
		next, effect, err := Transition(state, ev)
		if err != nil {
			return nil, err
		}
		log.Debug("router transition", "from", state.String(), "to", next.String())
		state = next

		switch effect.Kind {
		case EffectAskDocument:
			results, err := r.retriever.Retrieve(ctx, query, namespace, topK)
			if err != nil {
				return nil, fmt.Errorf("router: document retrieval failed: %w", err)
			}

			system := FallbackSystemPrompt
			if len(results) > 0 {
				system = BuildDocumentPrompt(buildContext(results))
				citations = toCitations(results)
			}
			raw, err := r.completer.Complete(ctx, system, query)
			if err != nil {
				return nil, fmt.Errorf("router: model call failed: %w", err)
			}
			ev = Event{Kind: EventRagVerdict, Verdict: ParseVerdict(raw)}

		case EffectConsultGeneral:
			results, err := r.retriever.Retrieve(ctx, query, rag.GeneralKnowledgeNamespace, topK)
			if err != nil {
				log.Warn("general knowledge retrieval failed, continuing to web search", "error", err)
				ev = Event{Kind: EventGeneralVerdict, Miss: true}
				break
			}
			if len(results) == 0 {
				ev = Event{Kind: EventGeneralVerdict, Miss: true}
				break
			}

			raw, err := r.completer.Complete(ctx, BuildDocumentPrompt(buildContext(results)), query)
			if err != nil {
				return nil, fmt.Errorf("router: general knowledge model call failed: %w", err)
			}
			verdict := ParseVerdict(raw)
			if !verdict.ParseFailed && !verdict.Escalate() {
				citations = toCitations(results)
			}
			ev = Event{Kind: EventGeneralVerdict, Verdict: verdict}

		case EffectSearchWeb:
			webContext := websearch.Format(nil)
			if r.search != nil {
				snippets, err := r.search.Search(ctx, query)
				if err != nil {
					log.Warn("web search failed, answering without snippets", "error", err)
				} else {
					webContext = websearch.Format(snippets)
				}
			}
			ev = Event{Kind: EventWebContext, WebContext: webContext}

		case EffectAskWeb:
			raw, err := r.completer.Complete(ctx, BuildWebPrompt(effect.WebContext), query)
			if err != nil {
				return nil, fmt.Errorf("router: web answer model call failed: %w", err)
			}
			ev = Event{Kind: EventWebAnswer, WebAnswer: raw}

		case EffectDeliver:
			resp := &Response{
				Answer: effect.Answer.Text,
				Source: effect.Answer.Source.String(),
			}
			if effect.Answer.Source != SourceWeb {
				resp.Citations = citations
			}
			return resp, nil
		}
	}
}

// buildContext formats retrieved chunks as labelled excerpts for the prompt.
func buildContext(results []rag.Result) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := res.Metadata.SourceDocument
		if name == "" {
			name = "document"
		}
		text := strings.ReplaceAll(res.Metadata.PreviewText, "\n", " ")
		if runes := []rune(text); len(runes) > previewLimit {
			text = string(runes[:previewLimit])
		}
		fmt.Fprintf(&b, "--- From file: %s ---\n%s\n", name, text)
	}
	return b.String()
}

func toCitations(results []rag.Result) []Citation {
	citations := make([]Citation, 0, len(results))
	for _, res := range results {
		excerpt := res.Metadata.PreviewText
		if runes := []rune(excerpt); len(runes) > 300 {
			excerpt = string(runes[:300])
		}
		citations = append(citations, Citation{
			SourceDocument: res.Metadata.SourceDocument,
			Excerpt:        excerpt,
		})
	}
	return citations
}
