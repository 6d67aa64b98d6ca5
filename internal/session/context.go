package session

import "time"

// ExpertContext is the durable record for one expert. It survives tower
// restarts and is the single source of truth for where the expert works and
// whether its agent conversation can be resumed.
type ExpertContext struct {
	SessionHash string `json:"session_hash"`
	ExpertID    int    `json:"expert_id"`
	Role        string `json:"role,omitempty"`

	// ResumeToken reattaches a newly launched agent to its previous
	// conversation. It is only meaningful for the worktree it was minted
	// in; AssignWorktree clears it.
	ResumeToken string `json:"resumable_session_token,omitempty"`

	WorktreeBranch string `json:"worktree_branch,omitempty"`
	WorktreePath   string `json:"worktree_path,omitempty"`

	LastModified time.Time `json:"last_modified"`
}

// NewExpertContext returns a fresh context for an expert that has never run.
func NewExpertContext(sessionHash string, expertID int) *ExpertContext {
	return &ExpertContext{
		SessionHash:  sessionHash,
		ExpertID:     expertID,
		LastModified: time.Now(),
	}
}

// AssignWorktree points the expert at a new worktree. The resume token is
// cleared in the same mutation: a conversation started in the old worktree
// must never be resumed in the new one. Persist the record immediately after
// calling this so the two changes land in one write.
func (c *ExpertContext) AssignWorktree(branch, path string) {
	c.WorktreeBranch = branch
	c.WorktreePath = path
	c.ResumeToken = ""
	c.LastModified = time.Now()
}

// SetResumeToken records the token for the expert's current conversation.
func (c *ExpertContext) SetResumeToken(token string) {
	c.ResumeToken = token
	c.LastModified = time.Now()
}

// SetRole records the expert's current role.
func (c *ExpertContext) SetRole(role string) {
	c.Role = role
	c.LastModified = time.Now()
}

// HasWorktree reports whether the expert has ever been assigned a worktree.
func (c *ExpertContext) HasWorktree() bool {
	return c.WorktreePath != ""
}
