package manifest

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/logging"
	"github.com/conneroisu/playpack/internal/moduleset"
	"github.com/conneroisu/playpack/internal/project"
)

// Target is one supported deployment shell.
type Target int

const (
	TargetPreview Target = iota
	TargetHybridMobile
	TargetDesktop
	TargetSocial
)

// String returns the target's name.
func (t Target) String() string {
	switch t {
	case TargetPreview:
		return "preview"
	case TargetHybridMobile:
		return "mobile"
	case TargetDesktop:
		return "desktop"
	case TargetSocial:
		return "social"
	default:
		return "unknown"
	}
}

// ParseTarget converts a target name to a Target.
func ParseTarget(name string) (Target, error) {
	switch name {
	case "preview":
		return TargetPreview, nil
	case "mobile", "cordova":
		return TargetHybridMobile, nil
	case "desktop", "electron":
		return TargetDesktop, nil
	case "social", "instant":
		return TargetSocial, nil
	default:
		return 0, errors.NewConfigurationError("target_unknown", "unknown export target: "+name)
	}
}

// PackagedTargets lists the targets usable with a packaged export.
func PackagedTargets() []Target {
	return []Target{TargetHybridMobile, TargetDesktop, TargetSocial}
}

//go:embed templates/*
var builtinTemplates embed.FS

// Options carries the caller-supplied parameters of one manifest
// generation.
type Options struct {
	// RuntimeSpec is the auxiliary specification blob passed verbatim to
	// the running bundle. Must be well-formed JSON; empty means "{}".
	RuntimeSpec string
}

// Generator produces the manifest documents for every target kind.
type Generator struct {
	fs          afero.Fs
	log         logging.Logger
	runtimeRoot string
}

// New creates a manifest generator. Template documents under
// <runtimeRoot>/templates take precedence over the built-in ones, so a
// runtime distribution can ship its own shells.
func New(fs afero.Fs, log logging.Logger, runtimeRoot string) *Generator {
	if log == nil {
		log = logging.NopLogger{}
	}

	return &Generator{fs: fs, log: log.WithComponent("manifest"), runtimeRoot: runtimeRoot}
}

// Generate writes the manifest and supporting files for the target
// under the output root. The module list must already be materialized
// with output-root-relative paths.
func (g *Generator) Generate(ctx context.Context, target Target, p *project.Project, modules []moduleset.Module, outputRoot string, opts Options) error {
	spec, err := normalizeRuntimeSpec(opts.RuntimeSpec)
	if err != nil {
		return err
	}

	switch target {
	case TargetPreview:
		return g.writeIndex(ctx, p, modules, outputRoot, spec)
	case TargetHybridMobile:
		if err := g.writeIndex(ctx, p, modules, outputRoot, spec); err != nil {
			return err
		}

		return g.writeTemplated(ctx, "config.xml", outputRoot, g.mobileSubstitution(p))
	case TargetDesktop:
		if err := g.writeIndex(ctx, p, modules, outputRoot, spec); err != nil {
			return err
		}
		if err := g.writeTemplated(ctx, "package.json", outputRoot, g.desktopSubstitution(p)); err != nil {
			return err
		}

		return g.copySupportFile("main.js", outputRoot)
	case TargetSocial:
		if err := g.writeIndex(ctx, p, modules, outputRoot, spec); err != nil {
			return err
		}

		return g.copySupportFile("fbapp-config.json", outputRoot)
	default:
		return errors.NewConfigurationError("target_unknown", fmt.Sprintf("unknown export target: %d", target)).WithStage("manifest")
	}
}

// writeIndex generates the HTML shell shared by every target.
func (g *Generator) writeIndex(ctx context.Context, p *project.Project, modules []moduleset.Module, outputRoot, spec string) error {
	sub := NewSubstitution().
		BindString(MarkerProjectName, html.EscapeString(p.Name)).
		Bind(MarkerIncludeFiles, renderIncludes(modules)).
		BindString(MarkerRuntimeSpec, spec)

	return g.writeTemplated(ctx, "index.html", outputRoot, sub)
}

// mobileSubstitution binds the hybrid-mobile packaging markers. Missing
// target options stay unbound, so the template fails loudly instead of
// shipping a dangling marker.
func (g *Generator) mobileSubstitution(p *project.Project) *Substitution {
	orientation := p.Orientation
	if orientation == "" {
		orientation = "default"
	}

	return NewSubstitution().
		BindString(MarkerPackageID, xmlEscape(p.PackageID)).
		BindString(MarkerProjectName, xmlEscape(p.Name)).
		BindString(MarkerProjectVersion, xmlEscape(p.Version)).
		BindString(MarkerOrientation, xmlEscape(orientation))
}

func (g *Generator) desktopSubstitution(p *project.Project) *Substitution {
	return NewSubstitution().
		BindString(MarkerPackageID, jsonEscape(p.PackageID)).
		BindString(MarkerProjectName, jsonEscape(p.Name)).
		BindString(MarkerProjectVersion, jsonEscape(p.Version))
}

func (g *Generator) writeTemplated(ctx context.Context, name, outputRoot string, sub *Substitution) error {
	doc, err := g.loadTemplate(name)
	if err != nil {
		return err
	}

	final, err := sub.Apply(doc)
	if err != nil {
		if ee, ok := errors.AsExport(err); ok {
			return ee.WithStage("manifest")
		}

		return err
	}

	dst := path.Join(outputRoot, name)
	if err := afero.WriteFile(g.fs, dst, []byte(final), 0644); err != nil {
		return errors.NewIOError("write_failed", "cannot write manifest", dst, err).WithStage("manifest")
	}

	g.log.Debug(ctx, "manifest written", "file", name)

	return nil
}

// copySupportFile ships a fixed supporting file untemplated.
func (g *Generator) copySupportFile(name, outputRoot string) error {
	doc, err := g.loadTemplate(name)
	if err != nil {
		return err
	}

	dst := path.Join(outputRoot, name)
	if err := afero.WriteFile(g.fs, dst, []byte(doc), 0644); err != nil {
		return errors.NewIOError("write_failed", "cannot write support file", dst, err).WithStage("manifest")
	}

	return nil
}

func (g *Generator) loadTemplate(name string) (string, error) {
	if g.runtimeRoot != "" {
		custom := path.Join(g.runtimeRoot, "templates", name)
		if ok, _ := afero.Exists(g.fs, custom); ok {
			data, err := afero.ReadFile(g.fs, custom)
			if err != nil {
				return "", errors.NewIOError("read_failed", "cannot read template", custom, err).WithStage("manifest")
			}

			return string(data), nil
		}
	}

	data, err := builtinTemplates.ReadFile("templates/" + name)
	if err != nil {
		return "", errors.NewIOError("template_missing", "no template for document", name, err).WithStage("manifest")
	}

	return string(data), nil
}

// renderIncludes produces one script inclusion per module, in list
// order, referencing output-root-relative paths.
func renderIncludes(modules []moduleset.Module) RenderFunc {
	return func() (string, error) {
		var b strings.Builder
		for i, m := range modules {
			if i > 0 {
				b.WriteString("\n    ")
			}
			fmt.Fprintf(&b, "<script src=%q></script>", m.Path)
		}

		return b.String(), nil
	}
}

func normalizeRuntimeSpec(spec string) (string, error) {
	if strings.TrimSpace(spec) == "" {
		return "{}", nil
	}
	if !json.Valid([]byte(spec)) {
		return "", errors.NewConfigurationError("runtime_spec_malformed", "auxiliary runtime specification is not well-formed JSON").WithStage("manifest")
	}

	return spec, nil
}

func xmlEscape(s string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	).Replace(s)
}

func jsonEscape(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return s
	}

	// Trim the surrounding quotes: the template supplies them.
	return strings.Trim(string(data), `"`)
}
