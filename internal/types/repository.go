package types

import "time"

type EntryType string

const (
	EntryTypeFile EntryType = "file"
	EntryTypeDir  EntryType = "dir"
)

type (
	RepoSummary struct {
		ID            int64     `json:"id"`
		Name          string    `json:"name"`
		FullName      string    `json:"full_name"`
		Owner         string    `json:"owner"`
		Private       bool      `json:"private"`
		Description   string    `json:"description,omitempty"`
		Language      string    `json:"language,omitempty"`
		DefaultBranch string    `json:"default_branch"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	// FileEntry is a node of a repository tree listing.
	FileEntry struct {
		Name     string      `json:"name"`
		Path     string      `json:"path"`
		Type     EntryType   `json:"type"`
		Size     int         `json:"size,omitempty"`
		Language string      `json:"language,omitempty"`
		Children []FileEntry `json:"children,omitempty"`
		// Set on a directory whose subtree could not be fetched in full.
		Partial bool   `json:"partial,omitempty"`
		Error   string `json:"error,omitempty"`
		// Set on a directory below the requested depth; list it by path to continue.
		Truncated bool `json:"truncated,omitempty"`
	}
)
