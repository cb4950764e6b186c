// Package export orchestrates one export request end to end: module
// set planning, incremental hash tracking, materialization and
// manifest generation. Stages run strictly in order, each consuming
// the previous stage's output; the first failing stage halts the
// export and becomes its single reported error.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/spf13/afero"

	"github.com/conneroisu/playpack/internal/codegen"
	"github.com/conneroisu/playpack/internal/config"
	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/hashtrack"
	"github.com/conneroisu/playpack/internal/logging"
	"github.com/conneroisu/playpack/internal/manifest"
	"github.com/conneroisu/playpack/internal/materialize"
	"github.com/conneroisu/playpack/internal/minify"
	"github.com/conneroisu/playpack/internal/moduleset"
	"github.com/conneroisu/playpack/internal/project"
)

// Exporter sequences the export pipeline. One Exporter may serve many
// export requests; concurrent requests are safe as long as each writes
// to a distinct output root.
type Exporter struct {
	fs        afero.Fs
	cfg       *config.Config
	log       logging.Logger
	generator codegen.Generator
	minifier  minify.Minifier
	progress  materialize.ProgressSink
}

// New creates an exporter. A nil generator selects the reference
// events generator, a nil minifier the built-in concatenating merger.
func New(fs afero.Fs, cfg *config.Config, log logging.Logger, generator codegen.Generator, minifier minify.Minifier, progress materialize.ProgressSink) *Exporter {
	if log == nil {
		log = logging.NopLogger{}
	}
	if generator == nil {
		generator = codegen.NewEventsGenerator()
	}
	if minifier == nil {
		if cfg != nil && cfg.Export.MinifyCommand != "" {
			minifier = minify.NewTool(cfg.Export.MinifyCommand, cfg.Export.MinifyArgs...)
		} else {
			minifier = minify.NewConcat()
		}
	}

	return &Exporter{
		fs:        fs,
		cfg:       cfg,
		log:       log.WithComponent("export"),
		generator: generator,
		minifier:  minifier,
		progress:  progress,
	}
}

// PreviewOptions describes one preview export request. The struct is
// read-only once passed to ExportForPreview.
type PreviewOptions struct {
	Project    *project.Project
	OutputPath string

	// DebuggerHost/DebuggerPort configure the websocket debugger server
	// the previewed game reaches out to. Empty host disables the
	// debugger client module.
	DebuggerHost string
	DebuggerPort string

	// InitialScene is the scene run first; empty selects the project's
	// first scene. InitialExternalLayout optionally names an external
	// layout instantiated at startup.
	InitialScene          string
	InitialExternalLayout string

	// PriorModuleHashes holds the fingerprints captured from the
	// previous export of this project; absent entries are regenerated.
	PriorModuleHashes hashtrack.Hashes
	// FullRebuild regenerates everything regardless of fingerprints.
	FullRebuild bool
	// DataOnly rewrites the project data module only.
	DataOnly bool
}

// Result is a successful export: the final module list as
// materialized, with paths relative to the output root.
type Result struct {
	Target     manifest.Target    `json:"target" yaml:"target"`
	OutputRoot string             `json:"output_root" yaml:"output_root"`
	EntryPoint string             `json:"entry_point" yaml:"entry_point"`
	Modules    []moduleset.Module `json:"modules" yaml:"modules"`

	// UpdatedHashes are the fresh fingerprints the caller persists for
	// the next incremental export. Nil for packaged exports.
	UpdatedHashes hashtrack.Hashes `json:"updated_hashes,omitempty" yaml:"updated_hashes,omitempty"`
}

// runtimeSpec is the auxiliary specification injected into the shell,
// passing runtime configuration without a separate config file.
type runtimeSpec struct {
	InitialScene          string          `json:"initialScene,omitempty"`
	InitialExternalLayout string          `json:"initialExternalLayout,omitempty"`
	DebuggerHost          string          `json:"debuggerHost,omitempty"`
	DebuggerPort          string          `json:"debuggerPort,omitempty"`
	DataOnly              bool            `json:"dataOnly,omitempty"`
	Extra                 json.RawMessage `json:"extra,omitempty"`
}

// ExportForPreview exports the project as a browsable preview bundle.
func (e *Exporter) ExportForPreview(ctx context.Context, opts PreviewOptions) (*Result, error) {
	if err := e.validatePreview(opts); err != nil {
		return nil, err
	}

	tracker := hashtrack.NewTracker(opts.PriorModuleHashes, opts.FullRebuild)

	initialScene := opts.InitialScene
	if initialScene == "" {
		initialScene = opts.Project.FirstScene
	}

	result, err := e.run(ctx, runRequest{
		target:     manifest.TargetPreview,
		project:    opts.Project,
		outputRoot: opts.OutputPath,
		tracker:    tracker,
		dataOnly:   opts.DataOnly,
		debugger:   opts.DebuggerHost != "",
		spec: runtimeSpec{
			InitialScene:          initialScene,
			InitialExternalLayout: opts.InitialExternalLayout,
			DebuggerHost:          opts.DebuggerHost,
			DebuggerPort:          opts.DebuggerPort,
			DataOnly:              opts.DataOnly,
		},
	})
	if err != nil {
		return nil, err
	}

	if opts.DataOnly {
		// Generation was skipped, so the tracker recorded nothing; the
		// fingerprints from the last full preview stay valid for the
		// next incremental export.
		result.UpdatedHashes = opts.PriorModuleHashes.Clone()
	} else {
		result.UpdatedHashes = tracker.Updated()
	}

	return result, nil
}

// ExportForPackagedTarget exports the project for one of the packaged
// targets (hybrid-mobile, desktop, social).
func (e *Exporter) ExportForPackagedTarget(ctx context.Context, target manifest.Target, p *project.Project, outputPath string, minifyOutput bool) (*Result, error) {
	if target == manifest.TargetPreview {
		return nil, errors.NewConfigurationError("target_invalid", "preview is not a packaged target; use ExportForPreview").WithStage("export")
	}
	if outputPath == "" {
		return nil, errors.NewConfigurationError("output_missing", "no output path supplied").WithStage("export")
	}

	return e.run(ctx, runRequest{
		target:     target,
		project:    p,
		outputRoot: outputPath,
		minify:     minifyOutput,
	})
}

// ExportProjectData serializes the project configuration (not code)
// plus the auxiliary specification into a single data file.
func (e *Exporter) ExportProjectData(ctx context.Context, p *project.Project, destPath string, auxiliarySpec string) error {
	if p == nil {
		return errors.NewConfigurationError("project_missing", "no project supplied").WithStage("export")
	}
	if err := stamp(p.Validate(), "export"); err != nil {
		return err
	}
	if auxiliarySpec == "" {
		auxiliarySpec = "{}"
	}
	if !json.Valid([]byte(auxiliarySpec)) {
		return errors.NewConfigurationError("runtime_spec_malformed", "auxiliary specification is not well-formed JSON").WithStage("export")
	}

	data, err := p.Data(nil)
	if err != nil {
		return stamp(err, "export")
	}

	content := fmt.Sprintf("playpack.projectData = %s;\nplaypack.runtimeOptions = %s;\n", data, auxiliarySpec)
	if err := afero.WriteFile(e.fs, destPath, []byte(content), 0644); err != nil {
		return errors.NewIOError("write_failed", "cannot write project data", destPath, err).WithStage("export")
	}

	e.log.Info(ctx, "project data exported", "path", destPath)

	return nil
}

type runRequest struct {
	target     manifest.Target
	project    *project.Project
	outputRoot string
	tracker    *hashtrack.Tracker
	spec       runtimeSpec
	debugger   bool
	minify     bool
	dataOnly   bool
}

// run sequences the pipeline: module set, resources, materialization,
// manifest.
func (e *Exporter) run(ctx context.Context, req runRequest) (*Result, error) {
	modules, err := moduleset.Build(req.project, moduleset.Options{WithDebuggerClient: req.debugger})
	if err != nil {
		return nil, stamp(err, "moduleset")
	}
	e.log.Debug(ctx, "module set planned", "target", req.target.String(), "modules", len(modules))

	mat := materialize.New(e.fs, e.log, e.generator, e.minifier, e.runtimeRoot(), e.codeOutput(), e.progress)

	mapping, err := mat.ExportResources(ctx, req.project, req.outputRoot)
	if err != nil {
		return nil, err
	}

	data, err := req.project.Data(mapping)
	if err != nil {
		return nil, stamp(err, "materialize")
	}

	modules, err = mat.Materialize(ctx, materialize.Request{
		Project:     req.project,
		Modules:     modules,
		OutputRoot:  req.outputRoot,
		ProjectData: data,
		Tracker:     req.tracker,
		Minify:      req.minify,
		DataOnly:    req.dataOnly,
	})
	if err != nil {
		return nil, err
	}

	spec, err := json.Marshal(req.spec)
	if err != nil {
		return nil, errors.NewConfigurationError("runtime_spec_marshal", err.Error()).WithStage("manifest")
	}

	gen := manifest.New(e.fs, e.log, e.runtimeRoot())
	if err := gen.Generate(ctx, req.target, req.project, modules, req.outputRoot, manifest.Options{RuntimeSpec: string(spec)}); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "export complete",
		"target", req.target.String(),
		"output", req.outputRoot,
		"modules", len(modules),
	)

	return &Result{
		Target:     req.target,
		OutputRoot: req.outputRoot,
		EntryPoint: path.Join(req.outputRoot, "index.html"),
		Modules:    modules,
	}, nil
}

func (e *Exporter) validatePreview(opts PreviewOptions) error {
	if opts.Project == nil {
		return errors.NewConfigurationError("project_missing", "no project supplied").WithStage("export")
	}
	if opts.OutputPath == "" {
		return errors.NewConfigurationError("output_missing", "no output path supplied").WithStage("export")
	}
	if opts.InitialScene != "" && opts.Project.Scene(opts.InitialScene) == nil {
		return errors.NewConfigurationError("scene_unknown", "initial scene not in project: "+opts.InitialScene).WithStage("export")
	}
	if opts.InitialExternalLayout != "" && opts.Project.ExternalLayout(opts.InitialExternalLayout) == nil {
		return errors.NewConfigurationError("layout_unknown", "initial external layout not in project: "+opts.InitialExternalLayout).WithStage("export")
	}

	return nil
}

func (e *Exporter) runtimeRoot() string {
	if e.cfg != nil {
		return e.cfg.Runtime.Root
	}

	return "runtime"
}

func (e *Exporter) codeOutput() string {
	if e.cfg != nil {
		return e.cfg.Runtime.CodeOutputDir
	}

	return path.Join(".playpack", "code")
}

// stamp fills in the stage on ExportErrors that lack one.
func stamp(err error, stage string) error {
	if err == nil {
		return nil
	}
	if ee, ok := errors.AsExport(err); ok {
		if ee.Stage == "" {
			ee.Stage = stage
		}

		return ee
	}

	return err
}
