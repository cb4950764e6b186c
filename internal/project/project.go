// Package project holds the in-memory description of an interactive
// project as the export pipeline consumes it. The authoring data model
// lives outside this repository; this package is the handle the
// pipeline reads (scenes, resources, renderer flags, extension
// includes) plus a JSON loader for the on-disk project file.
package project

import (
	"encoding/json"

	"github.com/spf13/afero"

	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/hashtrack"
)

// Renderer families a project can target. A project uses exactly one.
const (
	RendererWebGL  = "webgl"
	RendererCanvas = "canvas"
)

// Project is the read-only description of one interactive project.
type Project struct {
	Name        string `json:"name"`
	PackageID   string `json:"packageId"`
	Version     string `json:"version"`
	Orientation string `json:"orientation,omitempty"`
	Renderer    string `json:"renderer"`
	// FirstScene is run at startup when the export request names no
	// initial scene. Empty falls back to the first scene in order.
	FirstScene string `json:"firstScene,omitempty"`

	Scenes              []Scene          `json:"scenes"`
	ExternalLayouts     []ExternalLayout `json:"externalLayouts,omitempty"`
	ExternalSourceFiles []SourceFile     `json:"externalSourceFiles,omitempty"`
	Resources           []Resource       `json:"resources,omitempty"`
	Extensions          []Extension      `json:"extensions,omitempty"`
}

// Scene is one playable scene with its visual-event payload. The event
// representation is opaque to the pipeline; only the code generator
// interprets it.
type Scene struct {
	Name   string          `json:"name"`
	Events json.RawMessage `json:"events,omitempty"`
}

// Fingerprint returns the content fingerprint of the scene's events,
// used to match generated modules across successive exports.
func (s *Scene) Fingerprint() string {
	return hashtrack.Fingerprint(s.Events)
}

// ExternalLayout is a reusable object layout instantiable inside a scene.
type ExternalLayout struct {
	Name string `json:"name"`
}

// SourceFile is a user-supplied source file shipped alongside the
// generated code, stored inline in the project.
type SourceFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Fingerprint returns the content fingerprint of the source file.
func (f *SourceFile) Fingerprint() string {
	return hashtrack.Fingerprint([]byte(f.Content))
}

// Resource is one image/audio/font file referenced by the project.
type Resource struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
}

// Extension is an installed extension contributing include files that
// must load after the runtime core and before scene code.
type Extension struct {
	Name         string   `json:"name"`
	IncludeFiles []string `json:"includeFiles,omitempty"`
}

// Load reads and validates a project file.
func Load(fs afero.Fs, path string) (*Project, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.NewIOError("project_read_failed", "cannot read project file", path, err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewConfigurationError("project_malformed", "project file is not valid JSON: "+err.Error())
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks the project is complete enough to export.
func (p *Project) Validate() error {
	if p.Name == "" {
		return errors.NewConfigurationError("project_unnamed", "project has no name")
	}
	if len(p.Scenes) == 0 {
		return errors.NewConfigurationError("project_empty", "project has no scenes")
	}
	if p.Renderer != RendererWebGL && p.Renderer != RendererCanvas {
		return errors.NewConfigurationError("project_renderer", "unknown renderer family: "+p.Renderer)
	}
	seen := make(map[string]bool, len(p.Scenes))
	for _, s := range p.Scenes {
		if s.Name == "" {
			return errors.NewConfigurationError("scene_unnamed", "project contains an unnamed scene")
		}
		if seen[s.Name] {
			return errors.NewConfigurationError("scene_duplicate", "duplicate scene name: "+s.Name)
		}
		seen[s.Name] = true
	}
	if p.FirstScene != "" && !seen[p.FirstScene] {
		return errors.NewConfigurationError("first_scene_unknown", "first scene not in project: "+p.FirstScene)
	}

	return nil
}

// Scene returns the named scene, or nil when absent.
func (p *Project) Scene(name string) *Scene {
	for i := range p.Scenes {
		if p.Scenes[i].Name == name {
			return &p.Scenes[i]
		}
	}

	return nil
}

// ExternalLayout returns the named external layout, or nil when absent.
func (p *Project) ExternalLayout(name string) *ExternalLayout {
	for i := range p.ExternalLayouts {
		if p.ExternalLayouts[i].Name == name {
			return &p.ExternalLayouts[i]
		}
	}

	return nil
}

// Data serializes the project configuration for the runtime, rewriting
// resource file references through the supplied mapping (original path
// to output-root-relative path). A nil mapping leaves references
// untouched. Event payloads are omitted: the runtime consumes generated
// code, not raw events.
func (p *Project) Data(resourceMapping map[string]string) ([]byte, error) {
	out := *p
	out.ExternalSourceFiles = nil

	out.Scenes = make([]Scene, len(p.Scenes))
	for i, s := range p.Scenes {
		out.Scenes[i] = Scene{Name: s.Name}
	}

	if resourceMapping != nil {
		out.Resources = make([]Resource, len(p.Resources))
		for i, r := range p.Resources {
			if mapped, ok := resourceMapping[r.File]; ok {
				r.File = mapped
			}
			out.Resources[i] = r
		}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, errors.NewConfigurationError("project_serialize", "cannot serialize project data: "+err.Error())
	}

	return data, nil
}
