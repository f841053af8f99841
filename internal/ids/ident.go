// Package ids provides strong string type identifiers shared across the
// tool-execution core, so organization, conversation, run, and execution
// identifiers cannot be accidentally interchanged at call sites.
package ids

type (
	// OrgID identifies the owning organization of a resource or tool call.
	OrgID string

	// ConversationID identifies an append-only chat conversation.
	ConversationID string

	// RunID identifies a single agent execution loop run within a conversation.
	RunID string

	// ExecutionID identifies a pending or completed ToolExecution record.
	ExecutionID string

	// AgentID is the fully qualified identifier of an agent definition
	// (e.g. "ops.infra-agent"). Kept distinct from tools.Ident so registry
	// lookups and agent selection cannot be mixed up in maps or APIs.
	AgentID string
)
