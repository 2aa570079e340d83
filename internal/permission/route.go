package permission

import "strings"

// NormalizeRoute turns a pathname into the key form used by the tables:
// no surrounding whitespace, no query or fragment, a leading slash and no
// trailing slash. The root stays "/".
func NormalizeRoute(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = strings.TrimSpace(path[:i])
	}
	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// routePattern matches paths segment by segment; "{name}" segments match
// any single non-empty segment.
type routePattern struct {
	raw      string
	segments []string
}

func parseRoutePattern(raw string) (routePattern, bool) {
	if !strings.Contains(raw, "{") && !strings.Contains(raw, "}") {
		return routePattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return routePattern{}, false
	}

	parts := splitSegments(raw)
	for _, s := range parts {
		if s == "" {
			return routePattern{}, false
		}
		if strings.Contains(s, "{") || strings.Contains(s, "}") {
			if !isParamSegment(s) {
				return routePattern{}, false
			}
		}
	}
	return routePattern{raw: raw, segments: parts}, true
}

// before reports whether p takes precedence over q.
func (p routePattern) before(q routePattern) bool {
	if len(p.segments) != len(q.segments) {
		return len(p.segments) < len(q.segments)
	}
	for i := range p.segments {
		pp, qp := isParamSegment(p.segments[i]), isParamSegment(q.segments[i])
		if pp != qp {
			return !pp
		}
	}
	return p.raw < q.raw
}

func (p routePattern) match(path string) bool {
	if p.raw == "" {
		return false
	}
	in := splitSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i, want := range p.segments {
		got := in[i]
		if got == "" {
			return false
		}
		if isParamSegment(want) {
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

// shape erases parameter names so "/users/{id}" and "/users/{uid}" compare equal.
func (p routePattern) shape() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		if isParamSegment(s) {
			parts[i] = "{}"
			continue
		}
		parts[i] = s
	}
	return "/" + strings.Join(parts, "/")
}

func isPattern(route string) bool {
	return strings.ContainsAny(route, "{}")
}

func splitSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 && !strings.ContainsAny(s[1:len(s)-1], "{}")
}
