package proxy

import "strings"

// PathInfo is the target of a document store request, extracted from the
// URL path. Root-level commands like /_cluster/health leave Indices empty.
type PathInfo struct {
	Indices    []string
	Types      []string
	DocumentID string
}

// ParsePath extracts the target indices, types and document id from a
// request path. The first segment names the indices (comma-separated),
// the second the types, the third the document id. Segments starting
// with an underscore are commands, not names.
func ParsePath(path string) *PathInfo {
	info := &PathInfo{}

	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return info
	}

	segments := strings.Split(path, "/")

	if !isCommand(segments[0]) {
		info.Indices = splitNames(segments[0])
	}
	if len(segments) > 2 && !isCommand(segments[1]) {
		info.Types = splitNames(segments[1])
	}
	if len(segments) > 2 && !isCommand(segments[2]) {
		info.DocumentID = segments[2]
	}

	return info
}

func isCommand(segment string) bool {
	return strings.HasPrefix(segment, "_")
}

func splitNames(segment string) []string {
	var names []string
	for _, name := range strings.Split(segment, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
