package domain

// PipelineState is a step of one answer pipeline invocation.
type PipelineState string

// Pipeline states in the order they can be reached.
const (
	StateReceived  PipelineState = "received"
	StateRewritten PipelineState = "rewritten"
	StateRetrieved PipelineState = "retrieved"
	StateAnswered  PipelineState = "answered"
	StateFailed    PipelineState = "failed"
)

// IsTerminal returns true for answered and failed.
func (s PipelineState) IsTerminal() bool {
	return s == StateAnswered || s == StateFailed
}

// Answer is the result of a successful pipeline invocation.
type Answer struct {
	// Text is the assistant reply.
	Text string

	// Question is the question as asked.
	Question string

	// RewrittenQuestion is the standalone question used for retrieval.
	// Empty when no rewrite took place.
	RewrittenQuestion string

	// Chunks are the supporting chunks in rank order.
	Chunks []ScoredChunk

	// Trace lists the states the invocation passed through.
	Trace []PipelineState
}

// RetrievalQuery returns the question that was sent to the index.
func (a *Answer) RetrievalQuery() string {
	if a.RewrittenQuestion != "" {
		return a.RewrittenQuestion
	}
	return a.Question
}
