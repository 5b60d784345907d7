package llm

import "fmt"

// System prompts per chat type. Only "general" exists today; the map keeps
// the original multi-persona shape so new chat types slot in without code
// changes elsewhere.
var systemPrompts = map[string]string{
	"general": "You are OTTO, an educational assistant and an expert in pedagogy, " +
		"curriculum standards, academic formatting, and lesson planning. " +
		"Answer clearly, accurately, and professionally.",
}

// SystemPrompt returns the system instruction for a chat type, falling back
// to the general persona for unknown types.
func SystemPrompt(chatType string) string {
	if p, ok := systemPrompts[chatType]; ok {
		return p
	}
	return systemPrompts["general"]
}

// BuildKnowledgePrompt wraps the user question with retrieved context for the
// knowledge-augmented generation path. The instruction to fall back to general
// knowledge when the context is insufficient is required: retrieval is noisy
// and the model must not refuse to answer on a bad match.
func BuildKnowledgePrompt(question, knowledgeContext string) string {
	return fmt.Sprintf(`CONTEXT INFORMATION:
%s

USER QUESTION:
%s

Instruction: use the CONTEXT INFORMATION to answer the USER QUESTION. If the
context is insufficient or irrelevant, answer from your general knowledge, but
prefer the supplied context. Keep the answer clear, educational, and
professional.`, knowledgeContext, question)
}
