// Package types holds the data model shared across the router, cache, and
// driver packages.
package types

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionResult is the outcome of a successful Chat/Complete call.
type CompletionResult struct {
	Content      string  `json:"content"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	TokensUsed   int     `json:"tokensUsed"`
	LatencyMs    int64   `json:"latencyMs"`
	FromCache    bool    `json:"fromCache"`
	QualityScore int     `json:"qualityScore"`
}

// SystemStatus summarizes Router activity for Status().
type SystemStatus struct {
	TotalRequests  int64   `json:"totalRequests"`
	CacheHits      int64   `json:"cacheHits"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	AverageLatency float64 `json:"averageLatencyMs"`
	SuccessRate    float64 `json:"successRate"`
}
