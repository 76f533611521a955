// ABOUTME: SQLite implementation of ProfileStore for portfolio records.
// ABOUTME: Handles experience, skills, projects and blog posts ordered by display_order.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListExperience returns all experience entries, current positions included.
func (s *SQLiteStore) ListExperience(ctx context.Context) ([]*Experience, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_title, company, start_date, end_date, description, display_order
		FROM experience
		ORDER BY display_order ASC, start_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying experience: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Experience
	for rows.Next() {
		var e Experience
		var start string
		var end sql.NullString
		if err := rows.Scan(&e.ID, &e.JobTitle, &e.Company, &start, &end, &e.Description, &e.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scanning experience: %w", err)
		}
		if e.StartDate, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("parsing start_date for %s: %w", e.ID, err)
		}
		if end.Valid && end.String != "" {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, fmt.Errorf("parsing end_date for %s: %w", e.ID, err)
			}
			e.EndDate = &t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ListSkills returns skills, optionally restricted to one category.
func (s *SQLiteStore) ListSkills(ctx context.Context, category string) ([]*Skill, error) {
	query := `SELECT id, name, category, proficiency, display_order FROM skills`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY display_order ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying skills: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var skills []*Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Category, &sk.Proficiency, &sk.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scanning skill: %w", err)
		}
		skills = append(skills, &sk)
	}
	return skills, rows.Err()
}

// ListProjects returns projects, optionally only those using the given
// technology (case-insensitive).
func (s *SQLiteStore) ListProjects(ctx context.Context, technology string) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, technologies, url, display_order, created_at
		FROM projects
		ORDER BY display_order ASC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*Project
	for rows.Next() {
		var p Project
		var techJSON, created string
		var url sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &techJSON, &url, &p.DisplayOrder, &created); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		if err := json.Unmarshal([]byte(techJSON), &p.Technologies); err != nil {
			return nil, fmt.Errorf("parsing technologies for %s: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", p.ID, err)
		}
		p.URL = url.String

		if technology != "" && !containsFold(p.Technologies, technology) {
			continue
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// ListBlogPosts returns post summaries without bodies, newest first within
// display_order.
func (s *SQLiteStore) ListBlogPosts(ctx context.Context, limit int) ([]*BlogPost, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, summary, display_order, published_at
		FROM blog_posts
		ORDER BY display_order ASC, published_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying blog posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []*BlogPost
	for rows.Next() {
		var p BlogPost
		var published string
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.DisplayOrder, &published); err != nil {
			return nil, fmt.Errorf("scanning blog post: %w", err)
		}
		if p.PublishedAt, err = parseTime(published); err != nil {
			return nil, fmt.Errorf("parsing published_at for %s: %w", p.ID, err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// GetBlogPost returns a post with its body. Returns ErrNotFound if no post has the slug.
func (s *SQLiteStore) GetBlogPost(ctx context.Context, slug string) (*BlogPost, error) {
	var p BlogPost
	var published string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, summary, body, display_order, published_at
		FROM blog_posts WHERE slug = ?
	`, slug).Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Body, &p.DisplayOrder, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying blog post: %w", err)
	}
	if p.PublishedAt, err = parseTime(published); err != nil {
		return nil, fmt.Errorf("parsing published_at for %s: %w", p.ID, err)
	}
	return &p, nil
}

// CreateExperience inserts an experience entry.
func (s *SQLiteStore) CreateExperience(ctx context.Context, e *Experience) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	var end *string
	if e.EndDate != nil {
		str := e.EndDate.Format(time.RFC3339)
		end = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experience (id, job_title, company, start_date, end_date, description, display_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.JobTitle, e.Company, e.StartDate.Format(time.RFC3339), end, e.Description, e.DisplayOrder)
	return err
}

// CreateSkill inserts a skill.
func (s *SQLiteStore) CreateSkill(ctx context.Context, sk *Skill) error {
	if sk.ID == "" {
		sk.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skills (id, name, category, proficiency, display_order)
		VALUES (?, ?, ?, ?, ?)
	`, sk.ID, sk.Name, sk.Category, sk.Proficiency, sk.DisplayOrder)
	return err
}

// CreateProject inserts a project.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}

	techJSON, err := json.Marshal(p.Technologies)
	if err != nil {
		return fmt.Errorf("marshaling technologies: %w", err)
	}

	var url *string
	if p.URL != "" {
		url = &p.URL
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, technologies, url, display_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, string(techJSON), url, p.DisplayOrder, p.CreatedAt.Format(time.RFC3339))
	return err
}

// CreateBlogPost inserts a blog post.
func (s *SQLiteStore) CreateBlogPost(ctx context.Context, p *BlogPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blog_posts (id, slug, title, summary, body, display_order, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Title, p.Summary, p.Body, p.DisplayOrder, p.PublishedAt.Format(time.RFC3339))
	return err
}

// parseTime accepts RFC3339 timestamps and bare dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
