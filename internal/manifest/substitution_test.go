package manifest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/playpack/internal/errors"
)

func TestSubstitution_Apply(t *testing.T) {
	t.Run("bare and wrapped forms are consumed", func(t *testing.T) {
		sub := NewSubstitution().BindString(MarkerProjectName, "Game")

		out, err := sub.Apply("<!-- PLAYPACK_PROJECT_NAME --> /* PLAYPACK_PROJECT_NAME */ PLAYPACK_PROJECT_NAME")
		require.NoError(t, err)
		assert.Equal(t, "Game Game Game", out)
	})

	t.Run("unresolved marker is a defect naming the marker", func(t *testing.T) {
		sub := NewSubstitution().BindString(MarkerProjectName, "Game")

		_, err := sub.Apply("PLAYPACK_PROJECT_NAME and PLAYPACK_PACKAGE_ID")
		require.Error(t, err)

		ee, ok := errors.AsExport(err)
		require.True(t, ok)
		assert.Equal(t, errors.KindTemplate, ee.Kind)
		assert.Equal(t, "PLAYPACK_PACKAGE_ID", ee.Artifact)
	})

	t.Run("replacement text is never rescanned", func(t *testing.T) {
		sub := NewSubstitution().
			BindString(MarkerRuntimeSpec, `{"note":"PLAYPACK_PROJECT_NAME stays verbatim"}`).
			BindString(MarkerProjectName, "Game")

		out, err := sub.Apply("playpack.runtimeOptions = PLAYPACK_RUNTIME_SPEC; <!-- PLAYPACK_PROJECT_NAME -->")
		require.NoError(t, err)
		assert.Contains(t, out, `{"note":"PLAYPACK_PROJECT_NAME stays verbatim"}`)
		assert.Contains(t, out, "; Game")
	})

	t.Run("document without markers passes through", func(t *testing.T) {
		out, err := NewSubstitution().Apply("plain document")
		require.NoError(t, err)
		assert.Equal(t, "plain document", out)
	})

	t.Run("render error propagates", func(t *testing.T) {
		sub := NewSubstitution().Bind(MarkerRuntimeSpec, func() (string, error) {
			return "", fmt.Errorf("boom")
		})

		_, err := sub.Apply("PLAYPACK_RUNTIME_SPEC")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindTemplate))
	})

	t.Run("empty BindString leaves marker unbound", func(t *testing.T) {
		sub := NewSubstitution().BindString(MarkerPackageID, "")

		_, err := sub.Apply("PLAYPACK_PACKAGE_ID")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindTemplate))
	})
}
