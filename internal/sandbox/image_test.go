package sandbox

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageTagIsDeterministicAndContentAddressed(t *testing.T) {
	a := imageTag("/projects/foo", "console.log(1)")
	b := imageTag("/projects/foo", "console.log(1)")
	c := imageTag("/projects/foo", "console.log(2)")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestDeepMergeOverridesNestedKeysOnly(t *testing.T) {
	base := map[string]any{
		"compilerOptions": map[string]any{
			"target": "ES2022",
			"strict": true,
		},
		"include": []any{"**/*"},
	}
	override := map[string]any{
		"compilerOptions": map[string]any{
			"strict": false,
		},
	}

	merged := deepMerge(base, override)
	opts := merged["compilerOptions"].(map[string]any)
	require.Equal(t, "ES2022", opts["target"])
	require.Equal(t, false, opts["strict"])
	require.Equal(t, []any{"**/*"}, merged["include"])
}

func TestBuildContextProducesExpectedTarEntries(t *testing.T) {
	projectPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "package.json"), []byte(`{"name":"fixture-project"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "index.ts"), []byte("export {}"), 0o644))

	p := &Provisioner{cfg: Config{Image: "node:20-slim"}, projectPath: projectPath, packageName: "fixture-project"}
	r, err := p.buildContext("export {}", nil, nil)
	require.NoError(t, err)

	tr := tar.NewReader(r)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}

	require.ElementsMatch(t, []string{
		"package.json", "tsconfig.json", "entrypoint.ts", "Dockerfile",
		"fixture-project/index.ts",
	}, names)
}

func TestReadPackageNameReturnsPackageJSONName(t *testing.T) {
	projectPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "package.json"), []byte(`{"name":"my-lib","version":"1.0.0"}`), 0o644))

	name, err := readPackageName(projectPath)
	require.NoError(t, err)
	require.Equal(t, "my-lib", name)
}

func TestReadPackageNameFailsWithoutPackageJSON(t *testing.T) {
	_, err := readPackageName(t.TempDir())
	require.Error(t, err)
}
