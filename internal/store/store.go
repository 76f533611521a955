// ABOUTME: Store interfaces and profile record types for folio-gateway.
// ABOUTME: Defines ProfileStore for typed reads and SQLStore for the database tools.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUnknownTable is returned when an identifier does not name an existing table
var ErrUnknownTable = errors.New("unknown table")

// Experience is a work history entry
type Experience struct {
	ID           string     `json:"id"`
	JobTitle     string     `json:"job_title"`
	Company      string     `json:"company"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"` // nil for a current position
	Description  string     `json:"description"`
	DisplayOrder int        `json:"display_order"`
}

// Skill is a named skill with a proficiency from 0 to 100
type Skill struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Proficiency  int    `json:"proficiency"`
	DisplayOrder int    `json:"display_order"`
}

// Project is a portfolio project
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Technologies []string  `json:"technologies"`
	URL          string    `json:"url,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// BlogPost is a published article; Body is markdown
type BlogPost struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Body         string    `json:"body,omitempty"`
	DisplayOrder int       `json:"display_order"`
	PublishedAt  time.Time `json:"published_at"`
}

// Column describes one column of a table
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"notNull"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primaryKey"`
}

// TableInfo is the introspected shape of a table
type TableInfo struct {
	Name        string   `json:"table"`
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primaryKeys"`
}

// HasColumn reports whether the table has a column with the given name
func (t *TableInfo) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// RowSet is the result of a read query
type RowSet struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

// ExecResult is the result of a write statement
type ExecResult struct {
	RowsAffected int64 `json:"rowsAffected"`
	LastInsertID int64 `json:"lastInsertId,omitempty"`
}

// ProfileStore defines typed reads over the profile records
type ProfileStore interface {
	ListExperience(ctx context.Context) ([]*Experience, error)
	ListSkills(ctx context.Context, category string) ([]*Skill, error)
	ListProjects(ctx context.Context, technology string) ([]*Project, error)
	ListBlogPosts(ctx context.Context, limit int) ([]*BlogPost, error)
	GetBlogPost(ctx context.Context, slug string) (*BlogPost, error)
}

// SQLStore defines the operations behind the generic database tools
type SQLStore interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (*TableInfo, error)
	QueryRows(ctx context.Context, query string, maxRows int, args ...any) (*RowSet, error)
	Exec(ctx context.Context, query string, args ...any) (*ExecResult, error)
}
