// Package store provides the profile data store backing the gateway's tools.
//
// # Architecture
//
// SQLiteStore implements two interfaces consumed by tool handlers:
//
//   - ProfileStore: typed reads over experience, skills, projects and blog posts
//   - SQLStore: schema introspection plus parameterized query/exec used by the
//     generic database tools
//
// Either SQLite driver can back the store: "sqlite" (modernc.org/sqlite, pure Go,
// the default) or "sqlite3" (github.com/mattn/go-sqlite3, cgo).
//
// # Ordering
//
// Profile records carry an explicit display_order. Lists are sorted by
// display_order first, then by a secondary key per record type:
//
//   - Experience: start_date descending
//   - Skill: name
//   - Project: created_at descending
//   - BlogPost: published_at descending
//
// # Usage
//
//	s, err := store.Open("sqlite", "/var/lib/folio/profile.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	skills, err := s.ListSkills(ctx, "backend")
package store
