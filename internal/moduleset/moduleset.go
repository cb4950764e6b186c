// Package moduleset computes the ordered list of code and asset
// modules an export must ship. Ordering is load order: later modules
// may depend on earlier ones, so every later stage of the pipeline only
// appends or replaces entries in place, never reorders.
//
// Inclusion is driven by an enumerated role tag per module and a
// single predicate evaluated once per build. There is no add/remove
// pass pair; a role either passes the predicate or the module never
// enters the list, which keeps repeated builds idempotent by
// construction.
package moduleset

import (
	"fmt"

	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/project"
)

// Role tags one module with its function in the bundle.
type Role int

const (
	RoleRuntimeCore Role = iota
	RoleRendererWebGL
	RoleRendererCanvas
	RoleExtensionCode
	RoleProjectData
	RoleSceneCode
	RoleExternalSource
	RoleDebuggerClient
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleRuntimeCore:
		return "runtime-core"
	case RoleRendererWebGL:
		return "renderer-webgl"
	case RoleRendererCanvas:
		return "renderer-canvas"
	case RoleExtensionCode:
		return "extension-code"
	case RoleProjectData:
		return "project-data"
	case RoleSceneCode:
		return "scene-code"
	case RoleExternalSource:
		return "external-source"
	case RoleDebuggerClient:
		return "debugger-client"
	default:
		return "unknown"
	}
}

// Module is one unit of output with a stable identifier and a position
// in load order. Path starts relative to the runtime root (static
// roles) or absolute in the code output directory (generated roles);
// materialization rewrites it relative to the output root.
type Module struct {
	ID      string
	Path    string
	Role    Role
	NoMerge bool
}

// Mergeable reports whether the module may be collapsed into a merged
// artifact during minification.
func (m Module) Mergeable() bool {
	return !m.NoMerge
}

// Static library files shipped with the runtime, in load order.
var runtimeCoreFiles = []string{
	"runtime/polyfills.js",
	"runtime/core.js",
	"runtime/runtimeobject.js",
	"runtime/runtimescene.js",
	"runtime/inputmanager.js",
	"runtime/timemanager.js",
	"runtime/runtimegame.js",
}

var rendererFiles = map[string][]string{
	project.RendererWebGL: {
		"runtime/renderers/webgl/context.js",
		"runtime/renderers/webgl/spritebatch.js",
		"runtime/renderers/webgl/scenerenderer.js",
	},
	project.RendererCanvas: {
		"runtime/renderers/canvas/context.js",
		"runtime/renderers/canvas/scenerenderer.js",
	},
}

// DebuggerClientFile is the websocket debugger client shipped only for
// previews with a configured debugger endpoint.
const DebuggerClientFile = "runtime/debugger/debuggerclient.js"

// ProjectDataFile holds the serialized project configuration consumed
// by the runtime at startup.
const ProjectDataFile = "data.js"

// SceneCodeName returns the deterministic, ordinal-indexed name of the
// generated code module for the scene at the given position. The name
// depends only on the position so the hash tracker can match modules
// across successive exports.
func SceneCodeName(ordinal int) string {
	return fmt.Sprintf("code%d.js", ordinal)
}

// ExternalSourceName returns the ordinal-indexed name of the copied
// external source file module.
func ExternalSourceName(ordinal int) string {
	return fmt.Sprintf("ext-code%d.js", ordinal)
}

// Options selects the optional parts of the module set.
type Options struct {
	// WithDebuggerClient appends the debugger client module. Its absence
	// never shifts the ordinal numbering of other modules because it is
	// always last.
	WithDebuggerClient bool
}

// Predicate decides whether modules of a role belong in the bundle.
type Predicate func(Role) bool

// InclusionPredicate builds the single predicate evaluated for this
// build: the project's renderer family selects exactly one renderer
// role, the debugger client rides on the options, everything else is
// always in.
func InclusionPredicate(p *project.Project, opts Options) Predicate {
	return func(r Role) bool {
		switch r {
		case RoleRendererWebGL:
			return p.Renderer == project.RendererWebGL
		case RoleRendererCanvas:
			return p.Renderer == project.RendererCanvas
		case RoleDebuggerClient:
			return opts.WithDebuggerClient
		default:
			return true
		}
	}
}

// Build computes the complete, ordered module list for the project
// before any file is written. Order: runtime core, renderer family,
// extension includes, project data, one generated module per scene,
// one module per external source file, debugger client last.
func Build(p *project.Project, opts Options) ([]Module, error) {
	if p == nil {
		return nil, errors.NewConfigurationError("project_missing", "no project supplied").WithStage("moduleset")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	include := InclusionPredicate(p, opts)
	var modules []Module

	add := func(m Module) {
		if include(m.Role) {
			modules = append(modules, m)
		}
	}

	for _, f := range runtimeCoreFiles {
		add(Module{ID: f, Path: f, Role: RoleRuntimeCore})
	}
	for _, f := range rendererFiles[project.RendererWebGL] {
		add(Module{ID: f, Path: f, Role: RoleRendererWebGL})
	}
	for _, f := range rendererFiles[project.RendererCanvas] {
		add(Module{ID: f, Path: f, Role: RoleRendererCanvas})
	}
	for _, ext := range p.Extensions {
		for _, f := range ext.IncludeFiles {
			add(Module{ID: f, Path: f, Role: RoleExtensionCode})
		}
	}

	// Project data changes on every export; keeping it out of merged
	// bundles keeps those bundles stable across data-only exports.
	add(Module{ID: ProjectDataFile, Path: ProjectDataFile, Role: RoleProjectData, NoMerge: true})

	for i := range p.Scenes {
		name := SceneCodeName(i)
		add(Module{ID: name, Path: name, Role: RoleSceneCode})
	}
	for i := range p.ExternalSourceFiles {
		name := ExternalSourceName(i)
		add(Module{ID: name, Path: name, Role: RoleExternalSource})
	}

	add(Module{ID: DebuggerClientFile, Path: DebuggerClientFile, Role: RoleDebuggerClient, NoMerge: true})

	return modules, nil
}
