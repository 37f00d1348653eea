package shader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()
	fs, err := Defaults()
	require.NoError(t, err)

	programs, err := Load(ctx, fs)
	require.NoError(t, err)
	require.Len(t, programs, 2)

	planar, err := programs.Get(ProgramPlanar)
	require.NoError(t, err)
	assert.Equal(t, []string{"y_tex", "u_tex", "v_tex"}, planar.Samplers)
	assert.Contains(t, planar.VertexSource, "v_uv.y = -v_uv.y;")
	assert.Contains(t, planar.FragmentSource, "u_scale")

	semiplanar, err := programs.Get(ProgramSemiplanar)
	require.NoError(t, err)
	assert.Equal(t, []string{"y_tex", "uv_tex"}, semiplanar.Samplers)

	_, err = programs.Get("rgb")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	f, err := fs.Create(ManifestFileName)
	require.NoError(t, err)
	_, err = f.Write([]byte("programs:\n  - name: planar\n    vertex: quad.vert\n    fragment: planar.frag\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Load(ctx, fs)
	require.Error(t, err)

	_, err = Load(ctx, memfs.New())
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	_, err := Resolve(ctx, filepath.Join(t.TempDir(), "nonexistent"), "")
	require.Error(t, err)

	fs, err := Resolve(ctx, "", filepath.Join(t.TempDir(), "nonexistent"))
	require.NoError(t, err)
	_, err = Load(ctx, fs)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{ManifestFileName, "quad.vert", "planar.frag"} {
		b, err := defaultsFS.ReadFile("defaults/" + name)
		require.NoError(t, err)
		if name == ManifestFileName {
			b = []byte("programs:\n  - name: planar\n    vertex: quad.vert\n    fragment: planar.frag\n    samplers: [y_tex, u_tex, v_tex]\n")
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
	}
	fs, err = Resolve(ctx, "", dir)
	require.NoError(t, err)
	programs, err := Load(ctx, fs)
	require.NoError(t, err)
	require.Len(t, programs, 1)
}
