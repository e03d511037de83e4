package manifest_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arewefastyet/jsbuild/pkg/manifest"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

func TestWriter_WritesFixedFields(t *testing.T) {
	dir := t.TempDir()
	m := &types.Manifest{
		EngineType: types.EngineChrome,
		Args:       []string{"--expose-gc"},
		Platform:   types.PlatformAndroid,
		Revision:   "0123abcd",
		Binary:     "/src/v8/out/android_arm.release/d8",
		Shell:      types.Bool(true),
	}

	path, err := manifest.NewWriter(nil).Write(dir, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "info.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "chrome", raw["engine_type"])
	assert.Equal(t, []interface{}{"--expose-gc"}, raw["args"])
	assert.Equal(t, "android", raw["platform"])
	assert.Equal(t, "0123abcd", raw["revision"])
	assert.Equal(t, "/src/v8/out/android_arm.release/d8", raw["binary"])
	assert.Equal(t, true, raw["shell"])
}

func TestWriter_OverwritesPreviousManifest(t *testing.T) {
	dir := t.TempDir()
	w := manifest.NewWriter(nil)

	_, err := w.Write(dir, &types.Manifest{EngineType: types.EngineServo, Revision: "old", Binary: "/a/servo", Shell: types.Bool(false)})
	require.NoError(t, err)
	_, err = w.Write(dir, &types.Manifest{EngineType: types.EngineServo, Revision: "new", Binary: "/a/servo", Shell: types.Bool(false)})
	require.NoError(t, err)

	got, err := manifest.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Revision)
	assert.False(t, got.UsesShell())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}

func TestWriter_RejectsIncompleteManifest(t *testing.T) {
	tests := []struct {
		name string
		m    *types.Manifest
	}{
		{"nil", nil},
		{"missing revision", &types.Manifest{EngineType: types.EngineFirefox, Binary: "/js"}},
		{"relative binary", &types.Manifest{EngineType: types.EngineFirefox, Revision: "r", Binary: "js/src/Opt/dist/bin/js"}},
		{"unknown engine", &types.Manifest{EngineType: "chakra", Revision: "r", Binary: "/ch"}},
		{"bad platform", &types.Manifest{EngineType: types.EngineFirefox, Revision: "r", Binary: "/js", Platform: "ios"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := manifest.NewWriter(nil).Write(dir, tt.m)
			assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
			assert.NoFileExists(t, manifest.Path(dir))
		})
	}
}

func TestRead_Missing(t *testing.T) {
	_, err := manifest.Read(t.TempDir())
	assert.True(t, os.IsNotExist(err))
}
