//go:build property

package moduleset

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/playpack/internal/project"
)

// TestModuleSetProperties validates determinism and exclusion
// completeness of the module set builder.
func TestModuleSetProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // For reproducible results
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	makeProject := func(sceneCount, extSourceCount int, renderer string) *project.Project {
		p := &project.Project{
			Name:      "Generated",
			PackageID: "com.example.generated",
			Version:   "1.0.0",
			Renderer:  renderer,
		}
		for i := 0; i < sceneCount; i++ {
			p.Scenes = append(p.Scenes, project.Scene{Name: fmt.Sprintf("Scene%d", i)})
		}
		for i := 0; i < extSourceCount; i++ {
			p.ExternalSourceFiles = append(p.ExternalSourceFiles, project.SourceFile{
				Name:    fmt.Sprintf("src%d.js", i),
				Content: "var x;",
			})
		}

		return p
	}

	properties.Property("repeated builds are identical", prop.ForAll(
		func(sceneCount, extSourceCount int, webgl, debugger bool) bool {
			renderer := project.RendererCanvas
			if webgl {
				renderer = project.RendererWebGL
			}
			p := makeProject(sceneCount, extSourceCount, renderer)
			opts := Options{WithDebuggerClient: debugger}

			first, err := Build(p, opts)
			if err != nil {
				return false
			}
			second, err := Build(p, opts)
			if err != nil {
				return false
			}

			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i] != second[i] {
					return false
				}
			}

			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("excluded renderer family never appears", prop.ForAll(
		func(sceneCount int, webgl bool) bool {
			renderer := project.RendererCanvas
			excluded := RoleRendererWebGL
			if webgl {
				renderer = project.RendererWebGL
				excluded = RoleRendererCanvas
			}

			modules, err := Build(makeProject(sceneCount, 0, renderer), Options{})
			if err != nil {
				return false
			}

			for _, m := range modules {
				if m.Role == excluded {
					return false
				}
			}

			return true
		},
		gen.IntRange(1, 20),
		gen.Bool(),
	))

	properties.Property("scene modules are ordinal-named in project order", prop.ForAll(
		func(sceneCount int) bool {
			modules, err := Build(makeProject(sceneCount, 0, project.RendererWebGL), Options{})
			if err != nil {
				return false
			}

			ordinal := 0
			for _, m := range modules {
				if m.Role != RoleSceneCode {
					continue
				}
				if m.ID != SceneCodeName(ordinal) {
					return false
				}
				ordinal++
			}

			return ordinal == sceneCount
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
