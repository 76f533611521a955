// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers opening, profile ordering, introspection and parameterized statements

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestStore creates a store in a temporary directory.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(DriverModernc, ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	tables, err := s.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 4 {
		t.Errorf("expected 4 profile tables, got %v", tables)
	}
}

func TestOpen_MattnDriver(t *testing.T) {
	s, err := Open(DriverMattn, filepath.Join(t.TempDir(), "mattn.db"))
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("go-sqlite3 needs cgo")
	}
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.CreateSkill(ctx, &Skill{Name: "Go", Category: "backend"}); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	skills, err := s.ListSkills(ctx, "backend")
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(skills) != 1 || skills[0].Name != "Go" {
		t.Errorf("unexpected skills: %+v", skills)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("postgres", filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestListExperience_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := []*Experience{
		{JobTitle: "Engineer", Company: "Old Co", StartDate: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: &end, DisplayOrder: 1},
		{JobTitle: "Senior Engineer", Company: "New Co", StartDate: time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), DisplayOrder: 1},
		{JobTitle: "Founder", Company: "Side Co", StartDate: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), DisplayOrder: 0},
	}
	for _, e := range entries {
		if err := s.CreateExperience(ctx, e); err != nil {
			t.Fatalf("CreateExperience: %v", err)
		}
	}

	got, err := s.ListExperience(ctx)
	if err != nil {
		t.Fatalf("ListExperience: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	want := []string{"Side Co", "New Co", "Old Co"}
	for i, company := range want {
		if got[i].Company != company {
			t.Errorf("position %d: expected %s, got %s", i, company, got[i].Company)
		}
	}
	if got[1].EndDate != nil {
		t.Error("current position should have nil end date")
	}
	if got[2].EndDate == nil || !got[2].EndDate.Equal(end) {
		t.Errorf("unexpected end date: %v", got[2].EndDate)
	}
}

func TestListSkills_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, sk := range []*Skill{
		{Name: "Python", Category: "backend", Proficiency: 80, DisplayOrder: 2},
		{Name: "Go", Category: "backend", Proficiency: 90, DisplayOrder: 1},
		{Name: "CSS", Category: "frontend", Proficiency: 60, DisplayOrder: 1},
		{Name: "Elixir", Category: "backend", Proficiency: 40, DisplayOrder: 2},
	} {
		if err := s.CreateSkill(ctx, sk); err != nil {
			t.Fatalf("CreateSkill: %v", err)
		}
	}

	backend, err := s.ListSkills(ctx, "backend")
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	var names []string
	for _, sk := range backend {
		names = append(names, sk.Name)
	}
	want := []string{"Go", "Elixir", "Python"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}

	all, err := s.ListSkills(ctx, "")
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 skills, got %d", len(all))
	}
}

func TestListProjects_TechnologyFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateProject(ctx, &Project{Name: "gateway", Technologies: []string{"Go", "SQLite"}, URL: "https://example.com/gw"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := s.CreateProject(ctx, &Project{Name: "site", Technologies: []string{"TypeScript"}}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	goProjects, err := s.ListProjects(ctx, "go")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(goProjects) != 1 || goProjects[0].Name != "gateway" {
		t.Fatalf("expected only gateway, got %+v", goProjects)
	}
	if goProjects[0].URL != "https://example.com/gw" {
		t.Errorf("unexpected url: %s", goProjects[0].URL)
	}

	all, err := s.ListProjects(ctx, "")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 projects, got %d", len(all))
	}
}

func TestBlogPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &BlogPost{Slug: "first", Title: "First", Body: "# Hello", PublishedAt: time.Now().Add(-48 * time.Hour)}
	newer := &BlogPost{Slug: "second", Title: "Second", Body: "More", PublishedAt: time.Now()}
	for _, p := range []*BlogPost{older, newer} {
		if err := s.CreateBlogPost(ctx, p); err != nil {
			t.Fatalf("CreateBlogPost: %v", err)
		}
	}

	posts, err := s.ListBlogPosts(ctx, 10)
	if err != nil {
		t.Fatalf("ListBlogPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].Slug != "second" {
		t.Fatalf("expected newest first, got %+v", posts)
	}
	if posts[0].Body != "" {
		t.Error("list should not include bodies")
	}

	limited, err := s.ListBlogPosts(ctx, 1)
	if err != nil {
		t.Fatalf("ListBlogPosts: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 post, got %d", len(limited))
	}

	post, err := s.GetBlogPost(ctx, "first")
	if err != nil {
		t.Fatalf("GetBlogPost: %v", err)
	}
	if post.Body != "# Hello" {
		t.Errorf("unexpected body: %q", post.Body)
	}

	if _, err := s.GetBlogPost(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDescribeTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.DescribeTable(ctx, "skills")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if len(info.PrimaryKeys) != 1 || info.PrimaryKeys[0] != "id" {
		t.Errorf("unexpected primary keys: %v", info.PrimaryKeys)
	}
	if !info.HasColumn("proficiency") {
		t.Error("expected proficiency column")
	}
	if info.HasColumn("nope") {
		t.Error("unexpected column")
	}

	if _, err := s.DescribeTable(ctx, "skills; DROP TABLE skills"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("expected ErrUnknownTable, got %v", err)
	}
}

func TestQueryRowsAndExec(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		res, err := s.Exec(ctx, `INSERT INTO skills (id, name, proficiency) VALUES (?, ?, ?)`, name, name, i*10)
		if err != nil {
			t.Fatalf("Exec: %v", err)
		}
		if res.RowsAffected != 1 {
			t.Errorf("expected 1 row affected, got %d", res.RowsAffected)
		}
	}

	rs, err := s.QueryRows(ctx, `SELECT name, proficiency FROM skills ORDER BY name`, 2)
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rs.Rows) != 2 || !rs.Truncated {
		t.Fatalf("expected 2 truncated rows, got %d (truncated=%v)", len(rs.Rows), rs.Truncated)
	}
	if rs.Rows[0]["name"] != "a" {
		t.Errorf("unexpected first row: %v", rs.Rows[0])
	}
	if len(rs.Columns) != 2 {
		t.Errorf("unexpected columns: %v", rs.Columns)
	}

	rs, err = s.QueryRows(ctx, `SELECT name FROM skills WHERE proficiency >= ?`, 0, 10)
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rs.Rows) != 2 || rs.Truncated {
		t.Errorf("expected 2 rows, got %d", len(rs.Rows))
	}
}
