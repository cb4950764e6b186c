package export

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/playpack/internal/config"
	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/manifest"
	"github.com/conneroisu/playpack/internal/moduleset"
	"github.com/conneroisu/playpack/internal/project"
)

func testProject() *project.Project {
	return &project.Project{
		Name:      "Space Shooter",
		PackageID: "com.example.spaceshooter",
		Version:   "1.0.0",
		Renderer:  project.RendererWebGL,
		Scenes: []project.Scene{
			{Name: "Menu", Events: json.RawMessage(`[{"type":"start"}]`)},
			{Name: "Level1", Events: json.RawMessage(`[{"type":"spawn"}]`)},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Runtime: config.Runtime{Root: "runtime-root", CodeOutputDir: "code-out"},
	}
}

// seedRuntime writes a stub file for every static module the project
// can plan, mirroring an installed runtime distribution.
func seedRuntime(t *testing.T, fs afero.Fs, p *project.Project) {
	t.Helper()

	modules, err := moduleset.Build(p, moduleset.Options{WithDebuggerClient: true})
	require.NoError(t, err)

	for _, m := range modules {
		switch m.Role {
		case moduleset.RoleSceneCode, moduleset.RoleExternalSource, moduleset.RoleProjectData:
			continue
		}
		require.NoError(t, afero.WriteFile(fs, "runtime-root/"+m.Path, []byte("// "+m.ID+"\n"), 0644))
	}
}

func newTestExporter(fs afero.Fs) *Exporter {
	return New(fs, testConfig(), nil, nil, nil, nil)
}

func TestExportForPreview_TwoScenes(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)

	res, err := newTestExporter(fs).ExportForPreview(context.Background(), PreviewOptions{
		Project:    p,
		OutputPath: "out",
	})
	require.NoError(t, err)

	// Exactly one ordinal-named module per scene, in project scene
	// order, and no debugger client without an endpoint.
	var sceneIDs []string
	for _, m := range res.Modules {
		require.NotEqual(t, moduleset.RoleDebuggerClient, m.Role)
		if m.Role == moduleset.RoleSceneCode {
			sceneIDs = append(sceneIDs, m.ID)
		}
	}
	assert.Equal(t, []string{"code0.js", "code1.js"}, sceneIDs)

	// The shell references both generated modules in order.
	index, err := afero.ReadFile(fs, "out/index.html")
	require.NoError(t, err)
	html := string(index)
	assert.Contains(t, html, `<script src="code0.js"></script>`)
	assert.Contains(t, html, `<script src="code1.js"></script>`)
	assert.Less(t, strings.Index(html, "code0.js"), strings.Index(html, "code1.js"))
	assert.NotContains(t, html, "PLAYPACK_")
	assert.NotContains(t, html, "debuggerclient")

	assert.Equal(t, "out/index.html", res.EntryPoint)
	assert.NotEmpty(t, res.UpdatedHashes)
}

func TestExportForPreview_Deterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)
	e := newTestExporter(fs)

	first, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: p, OutputPath: "out"})
	require.NoError(t, err)
	second, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: p, OutputPath: "out"})
	require.NoError(t, err)

	require.Len(t, second.Modules, len(first.Modules))
	for i := range first.Modules {
		assert.Equal(t, first.Modules[i].ID, second.Modules[i].ID)
		assert.Equal(t, first.Modules[i].Path, second.Modules[i].Path)
	}
}

func TestExportForPreview_DebuggerClient(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)

	res, err := newTestExporter(fs).ExportForPreview(context.Background(), PreviewOptions{
		Project:      p,
		OutputPath:   "out",
		DebuggerHost: "127.0.0.1",
		DebuggerPort: "3930",
	})
	require.NoError(t, err)

	last := res.Modules[len(res.Modules)-1]
	assert.Equal(t, moduleset.RoleDebuggerClient, last.Role)

	index, _ := afero.ReadFile(fs, "out/index.html")
	assert.Contains(t, string(index), `"debuggerHost":"127.0.0.1"`)
	assert.Contains(t, string(index), `"debuggerPort":"3930"`)
}

func TestExportForPreview_IncrementalHashes(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)
	e := newTestExporter(fs)

	first, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: p, OutputPath: "out"})
	require.NoError(t, err)

	// Re-export with captured hashes: same result, fresh hash copy.
	second, err := e.ExportForPreview(context.Background(), PreviewOptions{
		Project:           p,
		OutputPath:        "out",
		PriorModuleHashes: first.UpdatedHashes,
	})
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedHashes, second.UpdatedHashes)
}

func TestExportForPreview_DataOnlyKeepsPriorFingerprints(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)
	e := newTestExporter(fs)

	full, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: p, OutputPath: "out"})
	require.NoError(t, err)
	require.NotEmpty(t, full.UpdatedHashes)

	// A data-only pass generates nothing, so the fingerprints from the
	// full preview must come back unchanged for the next export.
	dataOnly, err := e.ExportForPreview(context.Background(), PreviewOptions{
		Project:           p,
		OutputPath:        "out",
		PriorModuleHashes: full.UpdatedHashes,
		DataOnly:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, full.UpdatedHashes, dataOnly.UpdatedHashes)

	// Returned mapping is a copy, not the caller's map.
	dataOnly.UpdatedHashes["extra"] = "1"
	assert.NotContains(t, full.UpdatedHashes, "extra")
}

func TestExportForPreview_FirstSceneDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	p.FirstScene = "Level1"
	seedRuntime(t, fs, p)
	e := newTestExporter(fs)

	_, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: p, OutputPath: "out"})
	require.NoError(t, err)

	index, err := afero.ReadFile(fs, "out/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(index), `"initialScene":"Level1"`)

	// An explicit initial scene overrides the project default.
	_, err = e.ExportForPreview(context.Background(), PreviewOptions{
		Project:      p,
		OutputPath:   "out",
		InitialScene: "Menu",
	})
	require.NoError(t, err)

	index, err = afero.ReadFile(fs, "out/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(index), `"initialScene":"Menu"`)
}

func TestExportForPreview_Validation(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := newTestExporter(fs)
	ctx := context.Background()

	tests := []struct {
		name string
		opts PreviewOptions
	}{
		{"nil project", PreviewOptions{OutputPath: "out"}},
		{"no output path", PreviewOptions{Project: testProject()}},
		{"unknown initial scene", PreviewOptions{Project: testProject(), OutputPath: "out", InitialScene: "Bonus"}},
		{"unknown external layout", PreviewOptions{Project: testProject(), OutputPath: "out", InitialExternalLayout: "HUD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ExportForPreview(ctx, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindConfiguration))
		})
	}
}

func TestExportForPackagedTarget(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := testProject()
	seedRuntime(t, fs, p)
	e := newTestExporter(fs)

	t.Run("mobile", func(t *testing.T) {
		res, err := e.ExportForPackagedTarget(context.Background(), manifest.TargetHybridMobile, p, "out-mobile", false)
		require.NoError(t, err)
		assert.Equal(t, manifest.TargetHybridMobile, res.Target)

		exists, _ := afero.Exists(fs, "out-mobile/config.xml")
		assert.True(t, exists)
	})

	t.Run("desktop minified collapses mergeable run", func(t *testing.T) {
		res, err := e.ExportForPackagedTarget(context.Background(), manifest.TargetDesktop, p, "out-desktop", true)
		require.NoError(t, err)

		var bundles, sceneModules int
		for _, m := range res.Modules {
			if strings.HasPrefix(m.ID, "bundle") {
				bundles++
			}
			if m.Role == moduleset.RoleSceneCode && !strings.HasPrefix(m.ID, "bundle") {
				sceneModules++
			}
		}
		assert.NotZero(t, bundles, "contiguous mergeable modules collapse into bundles")
		assert.Zero(t, sceneModules, "scene code is merged into a bundle")

		index, _ := afero.ReadFile(fs, "out-desktop/index.html")
		assert.NotContains(t, string(index), `src="code0.js"`)
	})

	t.Run("preview is rejected", func(t *testing.T) {
		_, err := e.ExportForPackagedTarget(context.Background(), manifest.TargetPreview, p, "out", false)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindConfiguration))
	})
}

func TestExportProjectData(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := newTestExporter(fs)
	ctx := context.Background()

	require.NoError(t, e.ExportProjectData(ctx, testProject(), "data.js", `{"mode":"editor"}`))

	data, err := afero.ReadFile(fs, "data.js")
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "playpack.projectData = ")
	assert.Contains(t, content, `"Space Shooter"`)
	assert.Contains(t, content, `playpack.runtimeOptions = {"mode":"editor"};`)

	t.Run("malformed auxiliary spec", func(t *testing.T) {
		err := e.ExportProjectData(ctx, testProject(), "data.js", "{oops")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindConfiguration))
	})

	t.Run("invalid project", func(t *testing.T) {
		p := testProject()
		p.Scenes = nil
		err := e.ExportProjectData(ctx, p, "data.js", "")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindConfiguration))
	})
}

func TestExport_FailureIdentifiesStage(t *testing.T) {
	// No runtime files seeded: materialization must fail with an IO
	// error naming the missing module source.
	fs := afero.NewMemMapFs()
	e := newTestExporter(fs)

	_, err := e.ExportForPreview(context.Background(), PreviewOptions{Project: testProject(), OutputPath: "out"})
	require.Error(t, err)

	ee, ok := errors.AsExport(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindIO, ee.Kind)
	assert.Equal(t, "materialize", ee.Stage)
	assert.NotEmpty(t, ee.Artifact)
}
