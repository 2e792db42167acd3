package analysis

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

var (
	framePattern  = regexp.MustCompile(`^at\s+(?:[\w.\-@]+/)?([^\s(/]+)\.([^.(\s]+)\(([^)]*)\)`)
	threadPrefix  = regexp.MustCompile(`^Exception in thread "[^"]*"\s+`)
	classLikeName = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)+$`)
	moreFrames    = regexp.MustCompile(`^\.\.\.\s+\d+\s+more$`)
)

// ParseTraceText parses a JVM-style stack dump into a descriptor chain.
// Unrecognized lines before the first frame of a level extend its message.
// It returns nil when text holds nothing but whitespace.
func ParseTraceText(text string) *domain.FailureDescriptor {
	var root, cur *domain.FailureDescriptor
	inSuppressed := false

	startLevel := func(header string) {
		level := parseHeader(header)
		if root == nil {
			root = level
		} else {
			cur.Cause = level
		}
		cur = level
		inSuppressed = false
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Caused by:"):
			startLevel(strings.TrimSpace(strings.TrimPrefix(line, "Caused by:")))
		case strings.HasPrefix(line, "Suppressed:"):
			inSuppressed = true
		case strings.HasPrefix(line, "at "):
			if inSuppressed {
				continue
			}
			if cur == nil {
				startLevel("")
			}
			if f, ok := parseFrame(line); ok {
				cur.Frames = append(cur.Frames, f)
			}
		case moreFrames.MatchString(line):
			continue
		default:
			if inSuppressed {
				continue
			}
			if cur == nil {
				startLevel(line)
				continue
			}
			if len(cur.Frames) == 0 {
				if cur.Message == "" {
					cur.Message = line
				} else {
					cur.Message += "\n" + line
				}
			}
		}
	}
	return root
}

// parseHeader splits "pkg.Type: message" into context and message.
func parseHeader(header string) *domain.FailureDescriptor {
	header = threadPrefix.ReplaceAllString(header, "")
	d := &domain.FailureDescriptor{Message: header}
	if i := strings.Index(header, ": "); i > 0 && classLikeName.MatchString(header[:i]) {
		d.Context = header[:i]
		d.Message = header[i+2:]
	} else if classLikeName.MatchString(header) {
		d.Context = header
		d.Message = ""
	}
	return d
}

func parseFrame(line string) (domain.Frame, bool) {
	m := framePattern.FindStringSubmatch(line)
	if m == nil {
		return domain.Frame{}, false
	}
	f := domain.Frame{Class: m[1], Method: m[2]}
	loc := m[3]
	if i := strings.LastIndexByte(loc, ':'); i > 0 {
		if n, err := strconv.Atoi(loc[i+1:]); err == nil {
			f.File = loc[:i]
			f.Line = n
			return f, true
		}
	}
	if loc != "Native Method" && loc != "Unknown Source" {
		f.File = loc
	}
	return f, true
}
