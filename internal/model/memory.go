// Package model defines the core memory data types.
package model

import "time"

// Memory represents a stored memory record.
//
// UseCount and LastUsed are reserved metadata on the wire but live in
// dedicated store columns, so they are typed fields here. The Metadata
// map carries arbitrary caller-supplied fields, including the reserved
// "category" key used for search weighting.
type Memory struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Owner     string         `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Project   string         `json:"project,omitempty"`
	Directory string         `json:"directory,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UseCount  int            `json:"use_count"`
	LastUsed  *time.Time     `json:"last_used,omitempty"`
}

// Category returns the search-weighting category from metadata, if set.
func (m *Memory) Category() string {
	if c, ok := m.Metadata["category"].(string); ok {
		return c
	}
	return ""
}

// Archived reports whether the record is marked archived in metadata.
func (m *Memory) Archived() bool {
	if a, ok := m.Metadata["archived"].(bool); ok {
		return a
	}
	return false
}

// Clone returns a deep copy so cache tiers never alias caller memory.
func (m *Memory) Clone() *Memory {
	c := *m
	if m.Tags != nil {
		c.Tags = make([]string, len(m.Tags))
		copy(c.Tags, m.Tags)
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.LastUsed != nil {
		t := *m.LastUsed
		c.LastUsed = &t
	}
	return &c
}
