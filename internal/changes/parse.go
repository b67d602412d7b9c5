package changes

import (
	"strconv"
	"strings"
)

// ParseNameStatus buckets `git diff --name-status` lines. Rename and copy
// lines carry a similarity score after the code ("R087").
func ParseNameStatus(lines []string) *ChangeSet {
	c := NewChangeSet()
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			c.Add(Status(firstChar(line)), Entry{Path: line})
			continue
		}

		status := Status(fields[0][:1])
		switch {
		case status.Paired() && len(fields) >= 3:
			c.Add(status, Entry{From: unquote(fields[1]), Path: unquote(fields[2])})
		case status.Known() && !status.Paired():
			c.Add(status, Entry{Path: unquote(fields[1])})
		default:
			c.Add(status, Entry{Path: line})
		}
	}
	return c
}

// ParsePorcelain buckets `git status --porcelain` lines. Untracked files
// count as added; the index code wins over the work tree code.
func ParsePorcelain(lines []string) *ChangeSet {
	c := NewChangeSet()
	for _, line := range lines {
		if len(line) < 4 {
			c.Add(Status(firstChar(line)), Entry{Path: line})
			continue
		}

		code, path := line[:2], line[3:]
		status := Status(code[:1])
		switch {
		case code == "??":
			status = Added
		case code[0] == ' ':
			status = Status(code[1:])
		}

		switch {
		case status.Paired():
			old, renamed, ok := strings.Cut(path, " -> ")
			if !ok {
				c.Add(status, Entry{Path: line})
				continue
			}
			c.Add(status, Entry{From: unquote(old), Path: unquote(renamed)})
		case status.Known():
			c.Add(status, Entry{Path: unquote(path)})
		default:
			c.Add(status, Entry{Path: line})
		}
	}
	return c
}

func firstChar(s string) string {
	if s == "" {
		return "?"
	}
	return s[:1]
}

// unquote undoes git's C-style quoting of unusual paths.
func unquote(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}
