// Package builtins provides the built-in tool groups of the gateway.
//
// # Overview
//
// Each group is built by a constructor returning a *tools.Group and is
// registered with a tools.Registry by RegisterAll. Handlers take the JSON
// arguments object and return a JSON result.
//
// # Tool Groups
//
// Database (database:*) over store.SQLStore:
//
//   - query: Run a single read-only SELECT with bound params
//   - get_tables: List tables
//   - describe_table: Columns and primary keys of a table
//   - count_rows: Count rows matching equality conditions
//   - insert_row, update_rows, delete_rows: Only with allow_writes
//
// Profile (profile:*) over store.ProfileStore:
//
//   - get_experience, get_skills, get_projects
//   - get_blog_posts: Titles and summaries, newest first
//   - get_blog_post: One post rendered to plain text
//
// System (system:*):
//
//   - execute_command: Allow-listed command, no shell, bounded timeout
//   - read_file, list_directory: Inside allowed directories only
//   - system_info, check_url, dns_lookup
//
// Workflow (workflow:*): one tool per configured webhook, plus
// list_workflows.
//
// # Errors
//
// Input problems the caller can fix (missing arguments, disallowed commands,
// unknown tables) are returned as an {"error": "..."} result so the model can
// correct itself. Internal failures (timeouts, database or network errors) are
// returned as Go errors and surface as tool execution errors.
//
// # SQL Safety
//
// Table and column names are checked against DescribeTable before they are
// quoted into a statement. Values are always bound as parameters.
package builtins
