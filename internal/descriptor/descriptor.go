// Package descriptor parses feature descriptor files. A descriptor is a
// markdown document named INITIAL_<feature>.md with optional yaml
// frontmatter carrying per-run configuration overrides; its body is the
// work context handed to phase executors.
package descriptor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/cadence/internal/config"
	"github.com/harrison/cadence/internal/identifier"
)

// Overrides are the per-run configuration values a descriptor's
// frontmatter may set. Nil fields leave the config untouched.
type Overrides struct {
	MaxAttempts       *int     `yaml:"max_attempts"`
	CoverageThreshold *float64 `yaml:"coverage_threshold"`
	PhaseTimeout      string   `yaml:"phase_timeout"`
}

// Descriptor is a parsed feature descriptor.
type Descriptor struct {
	FeatureName string    // Authorized name (prefix stripped, validated)
	Body        string    // Markdown body without frontmatter
	Sections    []string  // Level-2 heading titles, in document order
	Overrides   Overrides // Frontmatter config overrides
}

// Parser parses descriptor files. Create once and reuse.
type Parser struct {
	markdown goldmark.Markdown
}

// NewParser creates a descriptor parser.
func NewParser() *Parser {
	return &Parser{markdown: goldmark.New()}
}

// Parse reads a descriptor file, derives and authorizes the feature name
// from the filename, and extracts frontmatter overrides and section
// headings. The name passes through the identifier validator fresh on
// every call; a rejection means no path may be derived from the name.
func (p *Parser) Parse(path, workRoot string) (*Descriptor, *identifier.Rejection, error) {
	rawName := strings.TrimSuffix(filepath.Base(path), ".md")

	authorized, rej := identifier.Validate(rawName, workRoot)
	if rej != nil {
		return nil, rej, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	body, frontmatter := splitFrontmatter(content)

	desc := &Descriptor{
		FeatureName: authorized,
		Body:        string(body),
	}

	if frontmatter != nil {
		if err := yaml.Unmarshal(frontmatter, &desc.Overrides); err != nil {
			return nil, nil, fmt.Errorf("failed to parse descriptor frontmatter: %w", err)
		}
		if desc.Overrides.PhaseTimeout != "" {
			if _, err := time.ParseDuration(desc.Overrides.PhaseTimeout); err != nil {
				return nil, nil, fmt.Errorf("invalid phase_timeout in descriptor: %w", err)
			}
		}
	}

	doc := p.markdown.Parser().Parse(text.NewReader(body))
	desc.Sections = extractSections(doc, body)

	return desc, nil, nil
}

// Apply merges the descriptor's overrides into cfg. Flag and file values
// lose to descriptor values, since the descriptor is the most specific
// statement of how this feature should run.
func (d *Descriptor) Apply(cfg *config.Config) error {
	if d.Overrides.MaxAttempts != nil {
		cfg.MaxAttempts = *d.Overrides.MaxAttempts
	}
	if d.Overrides.CoverageThreshold != nil {
		cfg.CoverageThreshold = *d.Overrides.CoverageThreshold
	}
	if d.Overrides.PhaseTimeout != "" {
		timeout, err := time.ParseDuration(d.Overrides.PhaseTimeout)
		if err != nil {
			return fmt.Errorf("invalid phase_timeout in descriptor: %w", err)
		}
		cfg.PhaseTimeout = timeout
	}
	return cfg.Validate()
}

// splitFrontmatter separates a leading yaml frontmatter block (delimited
// by --- lines) from the markdown body. Returns the body and the
// frontmatter bytes, or nil if there is no frontmatter.
func splitFrontmatter(content []byte) ([]byte, []byte) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return content, nil
	}
	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return content, nil
	}
	frontmatter := rest[:end]
	body := rest[end+4:]
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	}
	return body, frontmatter
}

// extractSections walks the markdown AST and collects level-2 heading
// titles in document order.
func extractSections(doc ast.Node, source []byte) []string {
	var sections []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
			}
		}
		if title := strings.TrimSpace(sb.String()); title != "" {
			sections = append(sections, title)
		}
		return ast.WalkContinue, nil
	})
	return sections
}
