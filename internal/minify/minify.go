// Package minify provides the external minifier collaborator used when
// an export requests a merged bundle. Merge receives the sources of one
// contiguous mergeable run, in load order, and returns the replacement
// module's bytes.
package minify

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/conneroisu/playpack/internal/errors"
)

// Minifier merges a list of module sources into a single artifact.
type Minifier interface {
	Merge(ctx context.Context, sources [][]byte) ([]byte, error)
}

// Concat is the built-in merger: it concatenates the sources with
// statement separators and strips blank lines. It performs no real
// minification but keeps merged exports working when no external tool
// is configured.
type Concat struct{}

// NewConcat creates the built-in merger.
func NewConcat() *Concat {
	return &Concat{}
}

// Merge implements Minifier.
func (Concat) Merge(ctx context.Context, sources [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewToolError("merge_canceled", "merge canceled", err)
	}

	var buf bytes.Buffer
	for _, src := range sources {
		for _, line := range strings.Split(string(src), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		// Guard against a source ending mid-statement.
		buf.WriteString(";\n")
	}

	return buf.Bytes(), nil
}

// Tool shells out to an external minifier command. The concatenated
// sources are piped to stdin and the minified bundle is read from
// stdout, so any closure-compiler-style tool works unmodified.
type Tool struct {
	command string
	args    []string
}

// NewTool creates a minifier backed by an external command.
func NewTool(command string, args ...string) *Tool {
	return &Tool{command: command, args: args}
}

// Merge implements Minifier.
func (t *Tool) Merge(ctx context.Context, sources [][]byte) ([]byte, error) {
	if t.command == "" {
		return nil, errors.NewToolError("minifier_unset", "no minifier command configured", nil)
	}

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	cmd.Stdin = bytes.NewReader(bytes.Join(sources, []byte("\n;\n")))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewToolError("minifier_timeout", "minifier timed out", ctx.Err())
		}

		msg := "minifier failed"
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg += ": " + s
		}

		return nil, errors.NewToolError("minifier_failed", msg, err)
	}

	return stdout.Bytes(), nil
}

var (
	_ Minifier = (*Concat)(nil)
	_ Minifier = (*Tool)(nil)
)
