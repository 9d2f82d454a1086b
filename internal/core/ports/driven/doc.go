// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - LLMService: Question rewriting and answering
//   - ConfigStore: Application configuration
//   - PromptStore: Customisable prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, sessions cannot bind a retrieval index.
//   - VectorIndex: Created per index; the flat implementation is the default.
//   - IndexStore: Without it, indexes live only in memory.
//   - SessionRepository: Without it, sessions last for the process lifetime.
//   - TokenCounter: Without it, history is measured in words.
//   - DocumentSource: Any corpus provider (filesystem, GitHub).
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
