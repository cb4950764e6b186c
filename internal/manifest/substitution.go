// Package manifest produces the target-specific entry documents of an
// export: the preview HTML shell, the hybrid-mobile configuration, the
// desktop packaging descriptor and the social-platform manifest.
//
// Substitution is not a template engine: each document carries a fixed
// set of named markers, each marker is bound to a render function, and
// a marker left unresolved after substitution is a defect reported as
// a TemplateError naming the marker, never silently deleted.
package manifest

import (
	"regexp"
	"strings"

	"github.com/conneroisu/playpack/internal/errors"
)

// Marker is a fixed substitution point inside a template document.
type Marker string

const (
	// MarkerIncludeFiles expands to one inclusion statement per module,
	// in load order.
	MarkerIncludeFiles Marker = "PLAYPACK_INCLUDE_FILES"
	// MarkerRuntimeSpec expands to the caller-supplied auxiliary
	// specification blob passed to the runtime at startup.
	MarkerRuntimeSpec Marker = "PLAYPACK_RUNTIME_SPEC"
	// MarkerProjectName expands to the project's display name.
	MarkerProjectName Marker = "PLAYPACK_PROJECT_NAME"
	// MarkerPackageID expands to the reverse-DNS packaging identifier.
	MarkerPackageID Marker = "PLAYPACK_PACKAGE_ID"
	// MarkerProjectVersion expands to the project version string.
	MarkerProjectVersion Marker = "PLAYPACK_PROJECT_VERSION"
	// MarkerOrientation expands to the screen orientation declaration.
	MarkerOrientation Marker = "PLAYPACK_ORIENTATION"
)

// RenderFunc produces the replacement text for one marker.
type RenderFunc func() (string, error)

// Substitution binds markers to render functions and applies them to a
// template document.
type Substitution struct {
	renderers map[Marker]RenderFunc
}

// NewSubstitution creates an empty substitution context.
func NewSubstitution() *Substitution {
	return &Substitution{renderers: make(map[Marker]RenderFunc)}
}

// Bind registers the render function for a marker.
func (s *Substitution) Bind(m Marker, fn RenderFunc) *Substitution {
	s.renderers[m] = fn

	return s
}

// BindString registers a fixed replacement for a marker. Empty values
// are not bound, so a template that requires the marker fails with a
// TemplateError instead of shipping an empty substitution.
func (s *Substitution) BindString(m Marker, value string) *Substitution {
	if value == "" {
		return s
	}

	return s.Bind(m, func() (string, error) { return value, nil })
}

// markerPattern matches one marker occurrence, wrapped in an HTML or
// JS comment or bare. Wrapped alternatives come first so the wrapper
// is consumed with the marker.
var markerPattern = regexp.MustCompile(`<!--\s*(PLAYPACK_[A-Z0-9_]+)\s*-->|/\*\s*(PLAYPACK_[A-Z0-9_]+)\s*\*/|PLAYPACK_[A-Z0-9_]+`)

// Apply substitutes every bound marker in the document in a single
// left-to-right pass. Replacement text is never rescanned, so rendered
// content may itself contain marker-shaped tokens. An unbound marker
// in the document yields a TemplateError naming the marker.
func (s *Substitution) Apply(doc string) (string, error) {
	rendered := make(map[Marker]string, len(s.renderers))

	var out strings.Builder
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(doc, -1) {
		var name string
		switch {
		case loc[2] >= 0:
			name = doc[loc[2]:loc[3]]
		case loc[4] >= 0:
			name = doc[loc[4]:loc[5]]
		default:
			name = doc[loc[0]:loc[1]]
		}

		render, bound := s.renderers[Marker(name)]
		if !bound {
			return "", errors.NewTemplateError("unresolved_marker", "marker left unresolved in document", name)
		}

		replacement, seen := rendered[Marker(name)]
		if !seen {
			var err error
			replacement, err = render()
			if err != nil {
				if ee, ok := errors.AsExport(err); ok {
					return "", ee
				}

				return "", errors.NewTemplateError("render_failed", "marker render failed: "+err.Error(), name)
			}
			rendered[Marker(name)] = replacement
		}

		out.WriteString(doc[last:loc[0]])
		out.WriteString(replacement)
		last = loc[1]
	}
	out.WriteString(doc[last:])

	return out.String(), nil
}
