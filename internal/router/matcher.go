// Package router resolves inbound requests to registered endpoints.
package router

import (
	"fmt"
	"regexp"
	"strings"
)

// versionPrefix is the path alias folded onto the unversioned prefix before
// matching, so /api/v1/users/123 and /api/users/123 resolve to the same
// registered route.
const (
	versionPrefix = "/api/v1/"
	basePrefix    = "/api/"
)

// TemplateMatcher is a compiled path template. Templates are split on "/";
// a ":name" segment captures one or more word characters under that name,
// a "*" segment matches the remainder greedily, and any other segment is
// matched literally. The compiled pattern anchors the full path and treats
// a trailing slash as optional.
type TemplateMatcher struct {
	template string
	regex    *regexp.Regexp
}

// NewTemplateMatcher compiles a path template.
func NewTemplateMatcher(template string) (*TemplateMatcher, error) {
	pattern, err := templateToPattern(template)
	if err != nil {
		return nil, err
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile route pattern for %q: %w", template, err)
	}

	return &TemplateMatcher{template: template, regex: regex}, nil
}

// templateToPattern converts a path template into an anchored regex pattern.
func templateToPattern(template string) (string, error) {
	var pattern strings.Builder
	pattern.WriteString("^")

	seen := make(map[string]bool)
	for _, segment := range strings.Split(strings.TrimPrefix(template, "/"), "/") {
		pattern.WriteString("/")
		switch {
		case strings.HasPrefix(segment, ":"):
			name := segment[1:]
			if name == "" || !isWordOnly(name) {
				return "", fmt.Errorf("invalid parameter segment %q in template %q", segment, template)
			}
			if seen[name] {
				return "", fmt.Errorf("duplicate parameter %q in template %q", name, template)
			}
			seen[name] = true
			pattern.WriteString("(?P<")
			pattern.WriteString(name)
			pattern.WriteString(`>\w+)`)
		case segment == "*":
			pattern.WriteString(".*")
		default:
			pattern.WriteString(regexp.QuoteMeta(segment))
		}
	}

	pattern.WriteString("/?$")
	return pattern.String(), nil
}

// isWordOnly reports whether s consists solely of word characters.
func isWordOnly(s string) bool {
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Match checks the path against the template and extracts named parameters.
func (m *TemplateMatcher) Match(path string) (matched bool, params map[string]string) {
	matches := m.regex.FindStringSubmatch(path)
	if matches == nil {
		return false, nil
	}

	params = make(map[string]string)
	for i, name := range m.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = matches[i]
		}
	}

	return true, params
}

// Template returns the original template.
func (m *TemplateMatcher) Template() string {
	return m.template
}

// NormalizePath strips trailing slashes and folds the version-prefix alias.
// It is idempotent.
func NormalizePath(path string) string {
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	if strings.HasPrefix(path, versionPrefix) {
		path = basePrefix + path[len(versionPrefix):]
	} else if path == strings.TrimSuffix(versionPrefix, "/") {
		path = strings.TrimSuffix(basePrefix, "/")
	}

	return path
}
