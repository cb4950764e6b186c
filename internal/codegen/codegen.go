// Package codegen defines the code generator collaborator that turns a
// scene's visual events into an executable module. The real generator
// lives with the authoring tool; the pipeline only depends on the
// Generator interface. EventsGenerator is the deterministic reference
// implementation used by the CLI and by tests.
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/project"
)

// Generator produces the executable module for one scene.
type Generator interface {
	// SceneCode generates the module bytes for the scene at the given
	// ordinal position in the project.
	SceneCode(ctx context.Context, p *project.Project, ordinal int) ([]byte, error)
}

// EventsGenerator emits a deterministic JavaScript module registering
// the scene's event payload with the runtime. Identical events always
// produce identical bytes, which the incremental export relies on.
type EventsGenerator struct{}

// NewEventsGenerator creates the reference generator.
func NewEventsGenerator() *EventsGenerator {
	return &EventsGenerator{}
}

// SceneCode implements Generator.
func (g *EventsGenerator) SceneCode(ctx context.Context, p *project.Project, ordinal int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewGenerationError("codegen_canceled", "generation canceled", fmt.Sprintf("code%d.js", ordinal), err)
	}
	if ordinal < 0 || ordinal >= len(p.Scenes) {
		return nil, errors.NewGenerationError(
			"scene_out_of_range",
			fmt.Sprintf("project has %d scenes, cannot generate scene %d", len(p.Scenes), ordinal),
			fmt.Sprintf("code%d.js", ordinal),
			nil,
		)
	}

	scene := &p.Scenes[ordinal]
	events := scene.Events
	if len(events) == 0 {
		events = json.RawMessage("[]")
	}
	if !json.Valid(events) {
		return nil, errors.NewGenerationError(
			"events_malformed",
			fmt.Sprintf("scene %q has a malformed event payload", scene.Name),
			fmt.Sprintf("code%d.js", ordinal),
			nil,
		)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "playpack.registerSceneCode(%q, function(runtimeScene) {\n", scene.Name)
	fmt.Fprintf(&buf, "  runtimeScene.runEvents(%s);\n", compactJSON(events))
	buf.WriteString("});\n")

	return buf.Bytes(), nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}

	return buf.String()
}

var _ Generator = (*EventsGenerator)(nil)
