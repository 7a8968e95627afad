// Package catalog resolves spoken prompt texts by key with named placeholder substitution.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownKey is returned when no template is registered for a key.
var ErrUnknownKey = errors.New("catalog: unknown key")

// UnresolvedPlaceholderError reports placeholders referenced by a template that the caller did not supply.
type UnresolvedPlaceholderError struct {
	Key     string
	Missing []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("catalog: template %q has unresolved placeholders: %s", e.Key, strings.Join(e.Missing, ", "))
}

// Template is a raw prompt text with its parsed placeholder names.
type Template struct {
	Key          string
	Text         string
	Placeholders []string
}

// Parse builds a Template, recording each distinct placeholder once in order of first appearance.
func Parse(key, text string) Template {
	seen := make(map[string]struct{})
	var names []string
	scan(text, func(name string) string {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return ""
	})
	return Template{Key: key, Text: text, Placeholders: names}
}

// Catalog is a concurrency-safe key to template map.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// New creates a catalog from key to text pairs.
func New(texts map[string]string) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(texts))}
	for key, text := range texts {
		c.templates[key] = Parse(key, text)
	}
	return c
}

// Set registers or replaces a template.
func (c *Catalog) Set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.templates == nil {
		c.templates = make(map[string]Template)
	}
	c.templates[key] = Parse(key, text)
}

// Merge overlays the given texts on top of the existing templates.
func (c *Catalog) Merge(texts map[string]string) {
	for key, text := range texts {
		c.Set(key, text)
	}
}

// Template returns the parsed template registered for key.
func (c *Catalog) Template(key string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[key]
	return t, ok
}

// Keys lists registered keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve renders the template for key. Every {name} occurrence is replaced with params[name];
// substituted values are inserted verbatim and never scanned again. Unused params are ignored.
func (c *Catalog) Resolve(key string, params map[string]string) (string, error) {
	t, ok := c.Template(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	var missing []string
	out := scan(t.Text, func(name string) string {
		if v, ok := params[name]; ok {
			return v
		}
		missing = appendUnique(missing, name)
		return "{" + name + "}"
	})
	if len(missing) > 0 {
		return "", &UnresolvedPlaceholderError{Key: key, Missing: missing}
	}
	return out, nil
}

// Validate checks that every contract key exists and that its template only references
// placeholders the engine supplies for that key.
func (c *Catalog) Validate(contract map[string][]string) error {
	keys := make([]string, 0, len(contract))
	for k := range contract {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		t, ok := c.Template(key)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownKey, key))
			continue
		}
		allowed := make(map[string]struct{}, len(contract[key]))
		for _, name := range contract[key] {
			allowed[name] = struct{}{}
		}
		var undeclared []string
		for _, name := range t.Placeholders {
			if _, ok := allowed[name]; !ok {
				undeclared = append(undeclared, name)
			}
		}
		if len(undeclared) > 0 {
			errs = append(errs, &UnresolvedPlaceholderError{Key: key, Missing: undeclared})
		}
	}
	return errors.Join(errs...)
}

// scan walks text once, handing each well-formed {name} token to fn and writing its result.
// Braces that do not enclose a placeholder name are copied through unchanged.
func scan(text string, fn func(name string) string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] == '{' {
			if end := strings.IndexByte(text[i+1:], '}'); end > 0 {
				name := text[i+1 : i+1+end]
				if isPlaceholderName(name) {
					b.WriteString(fn(name))
					i += end + 2
					continue
				}
			}
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

func isPlaceholderName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
