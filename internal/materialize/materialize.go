// Package materialize resolves each planned module to bytes and writes
// it under the output root: generated roles go through the code
// generator (or are reused when the hash tracker allows), static roles
// are copied from the runtime root. It also rewrites module paths
// relative to the output root, exports project resources with
// collision-proof renaming, and collapses contiguous mergeable runs
// into minified bundles when requested.
package materialize

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/playpack/internal/codegen"
	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/hashtrack"
	"github.com/conneroisu/playpack/internal/logging"
	"github.com/conneroisu/playpack/internal/minify"
	"github.com/conneroisu/playpack/internal/moduleset"
	"github.com/conneroisu/playpack/internal/project"
)

// ProgressSink receives coarse-grained materialization progress. Its
// absence must not change pipeline behavior.
type ProgressSink interface {
	ModuleMaterialized(done, total int)
}

// NopProgress discards progress updates.
type NopProgress struct{}

// ModuleMaterialized implements ProgressSink.
func (NopProgress) ModuleMaterialized(done, total int) {}

// Materializer writes planned modules under an output root.
type Materializer struct {
	fs          afero.Fs
	log         logging.Logger
	generator   codegen.Generator
	minifier    minify.Minifier
	runtimeRoot string
	codeOutput  string
	progress    ProgressSink
}

// New creates a materializer. runtimeRoot holds the static runtime
// library files; codeOutput is where generated code lands before being
// copied into the export, and is where reusable modules from previous
// incremental exports are found.
func New(fs afero.Fs, log logging.Logger, generator codegen.Generator, minifier minify.Minifier, runtimeRoot, codeOutput string, progress ProgressSink) *Materializer {
	if log == nil {
		log = logging.NopLogger{}
	}
	if progress == nil {
		progress = NopProgress{}
	}

	return &Materializer{
		fs:          fs,
		log:         log.WithComponent("materialize"),
		generator:   generator,
		minifier:    minifier,
		runtimeRoot: runtimeRoot,
		codeOutput:  codeOutput,
		progress:    progress,
	}
}

// Request describes one materialization pass.
type Request struct {
	Project     *project.Project
	Modules     []moduleset.Module
	OutputRoot  string
	ProjectData []byte
	// Tracker decides whether generated modules may be reused. Nil means
	// everything is regenerated.
	Tracker *hashtrack.Tracker
	// Minify collapses contiguous mergeable runs into single bundles.
	Minify bool
	// DataOnly rewrites only the project data module, leaving generated
	// and static files from a previous export in place.
	DataOnly bool
}

// Materialize writes every module and returns the final list with
// paths rewritten relative to the output root. Every module present in
// the request is either in the returned list or superseded by a merged
// replacement; nothing is silently dropped.
func (m *Materializer) Materialize(ctx context.Context, req Request) ([]moduleset.Module, error) {
	if err := m.fs.MkdirAll(req.OutputRoot, 0755); err != nil {
		return nil, errors.NewIOError("mkdir_failed", "cannot create output root", req.OutputRoot, err).WithStage("materialize")
	}
	if err := m.fs.MkdirAll(m.codeOutput, 0755); err != nil {
		return nil, errors.NewIOError("mkdir_failed", "cannot create code output directory", m.codeOutput, err).WithStage("materialize")
	}

	out := make([]moduleset.Module, 0, len(req.Modules))
	sceneOrdinal := 0
	externalOrdinal := 0

	for i, mod := range req.Modules {
		var err error
		var rewritten moduleset.Module

		switch mod.Role {
		case moduleset.RoleSceneCode:
			rewritten, err = m.materializeSceneCode(ctx, req, mod, sceneOrdinal)
			sceneOrdinal++
		case moduleset.RoleExternalSource:
			rewritten, err = m.materializeExternalSource(req, mod, externalOrdinal)
			externalOrdinal++
		case moduleset.RoleProjectData:
			rewritten, err = m.materializeProjectData(req, mod)
		default:
			rewritten, err = m.materializeStatic(req, mod)
		}

		if err != nil {
			return nil, err
		}

		out = append(out, rewritten)
		m.progress.ModuleMaterialized(i+1, len(req.Modules))
	}

	if req.Minify {
		merged, err := m.mergeRuns(ctx, req.OutputRoot, out)
		if err != nil {
			return nil, err
		}
		out = merged
	}

	return out, nil
}

// materializeSceneCode generates (or reuses) one scene's code module in
// the code output directory and copies it under the output root.
func (m *Materializer) materializeSceneCode(ctx context.Context, req Request, mod moduleset.Module, ordinal int) (moduleset.Module, error) {
	codePath := path.Join(m.codeOutput, mod.ID)

	if !req.DataOnly {
		scene := &req.Project.Scenes[ordinal]
		fresh := scene.Fingerprint()

		regenerate := true
		if req.Tracker != nil && !req.Tracker.ShouldRegenerate(mod.ID, fresh) {
			if ok, _ := afero.Exists(m.fs, codePath); ok {
				regenerate = false
			}
		}

		if regenerate {
			code, err := m.generator.SceneCode(ctx, req.Project, ordinal)
			if err != nil {
				return mod, wrapGeneration(err, mod.ID)
			}
			if err := afero.WriteFile(m.fs, codePath, code, 0644); err != nil {
				return mod, errors.NewIOError("write_failed", "cannot write generated code", codePath, err).WithStage("materialize")
			}
		} else {
			m.log.Debug(ctx, "reusing generated module", "module", mod.ID)
		}

		if err := m.copyFile(codePath, path.Join(req.OutputRoot, mod.ID)); err != nil {
			return mod, err
		}
	}

	mod.Path = mod.ID

	return mod, nil
}

// materializeExternalSource writes the inline external source file
// under its ordinal-indexed name. Copy cost is negligible, so external
// sources are always rewritten regardless of the hash tracker.
func (m *Materializer) materializeExternalSource(req Request, mod moduleset.Module, ordinal int) (moduleset.Module, error) {
	if !req.DataOnly {
		src := req.Project.ExternalSourceFiles[ordinal]
		dst := path.Join(req.OutputRoot, mod.ID)
		if err := afero.WriteFile(m.fs, dst, []byte(src.Content), 0644); err != nil {
			return mod, errors.NewIOError("write_failed", "cannot write external source file", dst, err).WithStage("materialize")
		}
	}

	mod.Path = mod.ID

	return mod, nil
}

func (m *Materializer) materializeProjectData(req Request, mod moduleset.Module) (moduleset.Module, error) {
	content := fmt.Sprintf("playpack.projectData = %s;\n", req.ProjectData)
	dst := path.Join(req.OutputRoot, mod.ID)
	if err := afero.WriteFile(m.fs, dst, []byte(content), 0644); err != nil {
		return mod, errors.NewIOError("write_failed", "cannot write project data", dst, err).WithStage("materialize")
	}

	mod.Path = mod.ID

	return mod, nil
}

// materializeStatic copies a third-party or runtime library file
// verbatim from the runtime root, preserving its relative subpath.
// Absolute paths are copied into the output root under their base name.
func (m *Materializer) materializeStatic(req Request, mod moduleset.Module) (moduleset.Module, error) {
	rel := mod.Path
	src := mod.Path
	if path.IsAbs(mod.Path) {
		rel = path.Base(mod.Path)
	} else {
		src = path.Join(m.runtimeRoot, mod.Path)
	}

	if !req.DataOnly {
		if err := m.copyFile(src, path.Join(req.OutputRoot, rel)); err != nil {
			return mod, err
		}
	}

	mod.Path = rel

	return mod, nil
}

func (m *Materializer) copyFile(src, dst string) error {
	data, err := afero.ReadFile(m.fs, src)
	if err != nil {
		return errors.NewIOError("read_failed", "cannot read module source", src, err).WithStage("materialize")
	}
	if dir := path.Dir(dst); dir != "." {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("mkdir_failed", "cannot create module directory", dir, err).WithStage("materialize")
		}
	}
	if err := afero.WriteFile(m.fs, dst, data, 0644); err != nil {
		return errors.NewIOError("write_failed", "cannot write module", dst, err).WithStage("materialize")
	}

	return nil
}

// ExportResources copies every project resource under the output
// root's assets directory. Filenames are NFC-normalized and collisions
// between distinct source files are resolved by a deterministic ordinal
// suffix, so repeated exports of the same project always produce the
// same names. The returned mapping (original file reference to
// output-root-relative path) is used to rewrite references in the
// serialized project data.
func (m *Materializer) ExportResources(ctx context.Context, p *project.Project, outputRoot string) (map[string]string, error) {
	mapping := make(map[string]string, len(p.Resources))
	taken := make(map[string]string) // assigned name -> source file

	for _, res := range p.Resources {
		// Same file referenced by several resources: copy once.
		if _, ok := mapping[res.File]; ok {
			continue
		}

		base := norm.NFC.String(path.Base(res.File))
		name := base
		for suffix := 2; ; suffix++ {
			owner, exists := taken[name]
			if !exists || owner == res.File {
				break
			}
			ext := path.Ext(base)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), suffix, ext)
		}
		taken[name] = res.File

		rel := path.Join("assets", name)
		if err := m.copyFile(res.File, path.Join(outputRoot, rel)); err != nil {
			return nil, err
		}
		mapping[res.File] = rel

		m.log.Debug(ctx, "resource exported", "resource", res.Name, "path", rel)
	}

	return mapping, nil
}

// mergeRuns collapses every contiguous run of two or more mergeable
// modules into a single minified bundle. The bundle takes the position
// of the run's first member and the originals are removed from the
// list and from disk. Runs separated by a non-mergeable module are
// never merged together, preserving load-order semantics. Zero
// eligible runs is a no-op, not an error.
func (m *Materializer) mergeRuns(ctx context.Context, outputRoot string, modules []moduleset.Module) ([]moduleset.Module, error) {
	out := make([]moduleset.Module, 0, len(modules))
	bundleOrdinal := 0

	for i := 0; i < len(modules); {
		if !modules[i].Mergeable() {
			out = append(out, modules[i])
			i++

			continue
		}

		j := i
		for j < len(modules) && modules[j].Mergeable() {
			j++
		}

		run := modules[i:j]
		if len(run) < 2 {
			out = append(out, run...)
			i = j

			continue
		}

		bundle, err := m.mergeRun(ctx, outputRoot, run, bundleOrdinal)
		if err != nil {
			return nil, err
		}
		out = append(out, bundle)
		bundleOrdinal++
		i = j
	}

	return out, nil
}

func (m *Materializer) mergeRun(ctx context.Context, outputRoot string, run []moduleset.Module, ordinal int) (moduleset.Module, error) {
	sources := make([][]byte, 0, len(run))
	for _, mod := range run {
		data, err := afero.ReadFile(m.fs, path.Join(outputRoot, mod.Path))
		if err != nil {
			return moduleset.Module{}, errors.NewIOError("read_failed", "cannot read module for merge", mod.Path, err).WithStage("materialize")
		}
		sources = append(sources, data)
	}

	merged, err := m.minifier.Merge(ctx, sources)
	if err != nil {
		if ee, ok := errors.AsExport(err); ok {
			return moduleset.Module{}, ee.WithStage("materialize")
		}

		return moduleset.Module{}, errors.NewToolError("minifier_failed", "minifier failed", err).WithStage("materialize")
	}

	name := fmt.Sprintf("bundle%d.js", ordinal)
	if err := afero.WriteFile(m.fs, path.Join(outputRoot, name), merged, 0644); err != nil {
		return moduleset.Module{}, errors.NewIOError("write_failed", "cannot write merged bundle", name, err).WithStage("materialize")
	}

	// Merged originals are superseded; drop their files so packaged
	// output ships only the bundle.
	for _, mod := range run {
		_ = m.fs.Remove(path.Join(outputRoot, mod.Path))
	}

	return moduleset.Module{ID: name, Path: name, Role: run[0].Role}, nil
}

func wrapGeneration(err error, moduleID string) error {
	if ee, ok := errors.AsExport(err); ok {
		return ee.WithStage("materialize")
	}

	return errors.NewGenerationError("codegen_failed", "code generator failed", moduleID, err).WithStage("materialize")
}
