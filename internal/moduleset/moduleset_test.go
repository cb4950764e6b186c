package moduleset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/playpack/internal/errors"
	"github.com/conneroisu/playpack/internal/project"
)

func twoSceneProject() *project.Project {
	return &project.Project{
		Name:      "Space Shooter",
		PackageID: "com.example.spaceshooter",
		Version:   "1.0.0",
		Renderer:  project.RendererWebGL,
		Scenes: []project.Scene{
			{Name: "Menu", Events: json.RawMessage(`[]`)},
			{Name: "Level1", Events: json.RawMessage(`[]`)},
		},
	}
}

func rolesOf(modules []Module) map[Role]int {
	counts := make(map[Role]int)
	for _, m := range modules {
		counts[m.Role]++
	}

	return counts
}

func TestBuild_TwoScenesNoDebugger(t *testing.T) {
	modules, err := Build(twoSceneProject(), Options{})
	require.NoError(t, err)

	var sceneModules []Module
	for _, m := range modules {
		if m.Role == RoleSceneCode {
			sceneModules = append(sceneModules, m)
		}
	}

	require.Len(t, sceneModules, 2)
	assert.Equal(t, "code0.js", sceneModules[0].ID)
	assert.Equal(t, "code1.js", sceneModules[1].ID)

	counts := rolesOf(modules)
	assert.Zero(t, counts[RoleDebuggerClient], "no debugger endpoint, no debugger client module")
	assert.Zero(t, counts[RoleRendererCanvas], "canvas renderer excluded for a webgl project")
	assert.NotZero(t, counts[RoleRuntimeCore])
	assert.NotZero(t, counts[RoleRendererWebGL])
	assert.Equal(t, 1, counts[RoleProjectData])
}

func TestBuild_DebuggerClientIsAppendedLast(t *testing.T) {
	without, err := Build(twoSceneProject(), Options{})
	require.NoError(t, err)

	with, err := Build(twoSceneProject(), Options{WithDebuggerClient: true})
	require.NoError(t, err)

	require.Len(t, with, len(without)+1)
	assert.Equal(t, RoleDebuggerClient, with[len(with)-1].Role)

	// The debugger client never shifts the numbering or order of the rest.
	for i, m := range without {
		assert.Equal(t, m.ID, with[i].ID)
	}
}

func TestBuild_RendererFamilySelection(t *testing.T) {
	p := twoSceneProject()
	p.Renderer = project.RendererCanvas

	modules, err := Build(p, Options{})
	require.NoError(t, err)

	counts := rolesOf(modules)
	assert.Zero(t, counts[RoleRendererWebGL])
	assert.NotZero(t, counts[RoleRendererCanvas])
}

func TestBuild_ExtensionIncludesPrecedeSceneCode(t *testing.T) {
	p := twoSceneProject()
	p.Extensions = []project.Extension{
		{Name: "physics", IncludeFiles: []string{"extensions/physics.js"}},
	}
	p.ExternalSourceFiles = []project.SourceFile{
		{Name: "utils.js", Content: "var x;"},
	}

	modules, err := Build(p, Options{})
	require.NoError(t, err)

	positions := make(map[string]int)
	for i, m := range modules {
		positions[m.ID] = i
	}

	assert.Less(t, positions["extensions/physics.js"], positions["data.js"])
	assert.Less(t, positions["data.js"], positions["code0.js"])
	assert.Less(t, positions["code1.js"], positions["ext-code0.js"])
}

func TestBuild_InvalidProject(t *testing.T) {
	_, err := Build(nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))

	p := twoSceneProject()
	p.Scenes = nil
	_, err = Build(p, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
}

func TestModule_Mergeable(t *testing.T) {
	assert.True(t, Module{Role: RoleSceneCode}.Mergeable())
	assert.True(t, Module{Role: RoleRuntimeCore}.Mergeable())
	assert.False(t, Module{Role: RoleDebuggerClient, NoMerge: true}.Mergeable())
	assert.False(t, Module{Role: RoleProjectData, NoMerge: true}.Mergeable())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "scene-code", RoleSceneCode.String())
	assert.Equal(t, "debugger-client", RoleDebuggerClient.String())
	assert.Equal(t, "unknown", Role(99).String())
}
