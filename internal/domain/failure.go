package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Frame is one entry of a call-frame trace.
type Frame struct {
	Class  string `json:"class"`
	Method string `json:"method,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
}

func (f Frame) String() string {
	var sb strings.Builder
	sb.WriteString(f.Class)
	if f.Method != "" {
		sb.WriteByte('.')
		sb.WriteString(f.Method)
	}
	if f.File != "" {
		sb.WriteByte('(')
		sb.WriteString(f.File)
		if f.Line > 0 {
			fmt.Fprintf(&sb, ":%d", f.Line)
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// FailureDescriptor is the host's description of a load failure.
type FailureDescriptor struct {
	Message string             `json:"message"`
	Context string             `json:"context,omitempty"`
	Frames  []Frame            `json:"frames,omitempty"`
	Cause   *FailureDescriptor `json:"cause,omitempty"`
}

// Chain flattens the cause relation, outermost first. Traversal stops after
// maxDepth levels or when a descriptor is revisited.
func (d *FailureDescriptor) Chain(maxDepth int) []*FailureDescriptor {
	if d == nil || maxDepth <= 0 {
		return nil
	}
	seen := make(map[*FailureDescriptor]struct{})
	var chain []*FailureDescriptor
	for cur := d; cur != nil && len(chain) < maxDepth; cur = cur.Cause {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		chain = append(chain, cur)
	}
	return chain
}

// Dump renders the descriptor chain in a stack-trace-like layout for logs.
func (d *FailureDescriptor) Dump(maxDepth int) string {
	var sb strings.Builder
	for i, level := range d.Chain(maxDepth) {
		if i > 0 {
			sb.WriteString("Caused by: ")
		}
		sb.WriteString(level.Message)
		sb.WriteByte('\n')
		for _, f := range level.Frames {
			sb.WriteString("\tat ")
			sb.WriteString(f.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// FromError builds a descriptor chain from a Go error using errors.Unwrap.
// Go errors carry no frames; the message of each level is its own Error text.
func FromError(err error) *FailureDescriptor {
	if err == nil {
		return nil
	}
	return &FailureDescriptor{
		Message: err.Error(),
		Cause:   FromError(errors.Unwrap(err)),
	}
}
