// Package security keeps credentials out of log output: a Redactor that
// masks known key formats and configured secrets, and a slog handler that
// applies it to every record.
package security

import (
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches config keys that hold secrets: api_key,
// bearer_token, basic_pass, an Authorization header. max_tokens and
// api_key_env do not match.
var secretKeyPattern = regexp.MustCompile(`(?i)(^|_)(secret|token|pass|password|api_key|credential|authorization)$`)

// minLiteralLen keeps short values like "x" from masking unrelated text.
const minLiteralLen = 4

// Redactor replaces secret values in strings. It matches known API key
// formats and literal values registered at runtime. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddLiteral registers a secret value. Values shorter than four bytes
// are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < minLiteralLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lit := range r.literals {
		if lit == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// AddFromYAML walks node and registers every scalar stored under a
// secret-looking key. It returns the number of values added.
func (r *Redactor) AddFromYAML(node *yaml.Node) int {
	if node == nil {
		return 0
	}
	added := 0
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			added += r.AddFromYAML(child)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind == yaml.ScalarNode && secretKeyPattern.MatchString(key.Value) {
				if len(val.Value) >= minLiteralLen {
					r.AddLiteral(val.Value)
					added++
				}
				continue
			}
			added += r.AddFromYAML(val)
		}
	}
	return added
}

// Redact replaces every known secret in s with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled patterns for common credential formats.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic before OpenAI so the longer prefix wins.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
		regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]{16,}=*`),
		regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/]{12,}=*`),
	}
}
