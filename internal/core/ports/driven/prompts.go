package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptContextualizeQuestion rewrites a follow-up question into a standalone one.
	// It is used as the system message ahead of the rendered history.
	PromptContextualizeQuestion = "contextualize_question"

	// PromptQASystem is the system prompt used when retrieved context is available.
	// The template expects a single %s placeholder for the context block.
	PromptQASystem = "qa_system"

	// PromptChatSystem is the system prompt for sessions without a bound index.
	// This prompt has no format placeholders.
	PromptChatSystem = "chat_system"
)

// DefaultPromptTemplates returns the built-in prompt templates keyed by prompt name.
func DefaultPromptTemplates() map[string]string {
	return map[string]string{
		PromptContextualizeQuestion: "Given a chat history and the latest user question " +
			"which might reference context in the chat history, " +
			"formulate a standalone question which can be understood " +
			"without the chat history. Do NOT answer the question, " +
			"just reformulate it if needed and otherwise return it as is.",
		PromptQASystem: "You are an assistant for question-answering tasks. " +
			"Use the following pieces of retrieved context to answer the question. " +
			"If you don't know the answer, say that you don't know. " +
			"Use three sentences maximum and keep the answer concise.\n\n" +
			"<context>\n%s\n</context>",
		PromptChatSystem: "You are a helpful assistant. Please respond to the user queries.",
	}
}
