package analysis

import "fmt"

// maxSampleChars bounds the excerpt sample fed to the quick summary prompt.
const maxSampleChars = 4000

const quickAnalyzeSystemPrompt = `You are a concise document analyst.
Using only the provided document excerpts, produce:
(A) a plain-English statement of what this document is (e.g., contract, lease agreement, policy) and its purpose,
(B) a short 3-sentence plain-English summary for a non-expert,
(C) three short factual bullet points labelled FACTS, explicitly supported by the excerpts, and
(D) a single-line confidence indicator (High/Medium/Low).`

const faqSystemPrompt = `You are an expert FAQ writer for legal/technical documents. Using ONLY the provided excerpts (DO NOT use outside knowledge), create a concise FAQ in MARKDOWN.

Rules:
- Write between 6 and 10 Q&A pairs (aim for 10 if the material supports it).
- Each question should be short and practical for a non-expert.
- Each answer must be STRICTLY supported by the excerpts. If not present, write exactly: 'Not stated in document.'
- Keep each answer 1-3 short sentences max. Avoid boilerplate and legalese.
- If you quote, include only a short snippet (<=200 chars) and append '(excerpt)'.
- Do NOT invent numbers, dates, obligations, or parties.
- Output format (Markdown): use '### Q: ...' then on the next line 'A: ...'. No extra commentary.`

const studyGuideSystemPrompt = `You are a detailed document analyst.
Using only the provided document excerpts, produce:
- A plain-English statement of what this document is (e.g., contract, agreement, policy) and its general purpose.
- A comprehensive, long-form plain-English summary aimed at a non-expert, covering all key topics and details in the text.
- A single-line confidence indicator (High/Medium/Low).`

// BuildExcerptPrompt renders the user message carrying the document excerpts.
func BuildExcerptPrompt(excerpts string) string {
	return fmt.Sprintf("Document excerpts:\n\n%s\n\nProduce the analysis as requested above.", excerpts)
}
