// ABOUTME: Profile pack provides read-only portfolio tools over the profile store.
// ABOUTME: Blog post bodies are rendered from markdown to plain text with goldmark.

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/folio-gateway/internal/store"
	"github.com/2389/folio-gateway/internal/tools"
)

// ProfilePack creates the profile pack over s.
func ProfilePack(s store.ProfileStore) *tools.Group {
	p := &profileHandlers{store: s}
	return &tools.Group{
		Category: "profile",
		Tools: []tools.Definition{
			{
				Name:        "get_experience",
				Description: "List work experience, current positions included",
				Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
				Handler:     p.GetExperience,
			},
			{
				Name:        "get_skills",
				Description: "List skills, optionally filtered by category",
				Schema:      json.RawMessage(`{"type":"object","properties":{"category":{"type":"string"}}}`),
				Handler:     p.GetSkills,
			},
			{
				Name:        "get_projects",
				Description: "List projects, optionally only those using a technology",
				Schema:      json.RawMessage(`{"type":"object","properties":{"technology":{"type":"string"}}}`),
				Handler:     p.GetProjects,
			},
			{
				Name:        "get_blog_posts",
				Description: "List blog post titles and summaries, newest first",
				Schema:      json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":100}}}`),
				Handler:     p.GetBlogPosts,
			},
			{
				Name:        "get_blog_post",
				Description: "Read a blog post as plain text",
				Schema:      json.RawMessage(`{"type":"object","properties":{"slug":{"type":"string"}},"required":["slug"]}`),
				Handler:     p.GetBlogPost,
			},
		},
	}
}

type profileHandlers struct {
	store store.ProfileStore
}

func (p *profileHandlers) GetExperience(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	entries, err := p.store.ListExperience(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*store.Experience{}
	}
	return json.Marshal(map[string]any{"experience": entries, "count": len(entries)})
}

type skillsInput struct {
	Category string `json:"category"`
}

func (p *profileHandlers) GetSkills(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in skillsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}

	skills, err := p.store.ListSkills(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	if skills == nil {
		skills = []*store.Skill{}
	}
	return json.Marshal(map[string]any{"skills": skills, "count": len(skills)})
}

type projectsInput struct {
	Technology string `json:"technology"`
}

func (p *profileHandlers) GetProjects(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in projectsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}

	projects, err := p.store.ListProjects(ctx, in.Technology)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	return json.Marshal(map[string]any{"projects": projects, "count": len(projects)})
}

type blogPostsInput struct {
	Limit int `json:"limit"`
}

func (p *profileHandlers) GetBlogPosts(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in blogPostsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	if in.Limit < 0 || in.Limit > 100 {
		return tools.ErrorResult("limit must be between 1 and 100")
	}

	posts, err := p.store.ListBlogPosts(ctx, in.Limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		summaries = append(summaries, map[string]any{
			"slug":         post.Slug,
			"title":        post.Title,
			"summary":      post.Summary,
			"published_at": post.PublishedAt,
		})
	}
	return json.Marshal(map[string]any{"posts": summaries, "count": len(summaries)})
}

type blogPostInput struct {
	Slug string `json:"slug"`
}

func (p *profileHandlers) GetBlogPost(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in blogPostInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	if in.Slug == "" {
		return tools.ErrorResult("missing required argument: slug")
	}

	post, err := p.store.GetBlogPost(ctx, in.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return tools.ErrorResult("no blog post with slug %q", in.Slug)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"slug":         post.Slug,
		"title":        post.Title,
		"summary":      post.Summary,
		"published_at": post.PublishedAt,
		"text":         markdownToText([]byte(post.Body)),
	})
}

// markdownToText renders markdown source as plain text: inline markup is
// dropped, blocks are separated by newlines and raw HTML is skipped.
func markdownToText(src []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b bytes.Buffer
	endLine := func() {
		if b.Len() > 0 && b.Bytes()[b.Len()-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				switch {
				case node.HardLineBreak():
					b.WriteByte('\n')
				case node.SoftLineBreak():
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(src))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				endLine()
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.ThematicBreak:
			if !entering {
				endLine()
			}
		}
		return ast.WalkContinue, nil
	})

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
