package pkgresolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject 创建临时模块
// models 目录的包名故意与目录名不同
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n\ngo 1.22\n")
	writeFile(t, filepath.Join(root, "models", "org.go"), "package entity\n\ntype Organization struct{ ID string }\n")
	writeFile(t, filepath.Join(root, "models", "org_test.go"), "package entity_test\n")
	return root
}

func TestResolver_ProjectPackage(t *testing.T) {
	root := newProject(t)
	r, err := NewResolverFromDir(filepath.Join(root, "models"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", r.ModulePath())

	pkg, err := r.Resolve("example.com/app/models")
	require.NoError(t, err)
	assert.Equal(t, "entity", pkg.Name)
	assert.Equal(t, filepath.Join(root, "models"), pkg.Dir)

	again, err := r.Resolve("example.com/app/models")
	require.NoError(t, err)
	assert.Same(t, pkg, again)
}

func TestResolver_Errors(t *testing.T) {
	root := newProject(t)
	r, err := NewResolver(root)
	require.NoError(t, err)

	_, err = r.Resolve("time")
	assert.ErrorIs(t, err, ErrStdLib)

	_, err = r.Resolve("example.com/app/missing")
	assert.Error(t, err)

	_, err = r.Resolve("")
	assert.Error(t, err)

	_, err = NewResolver(t.TempDir())
	assert.Error(t, err)
}

func TestResolver_ImportPathOf(t *testing.T) {
	root := newProject(t)
	r, err := NewResolver(root)
	require.NoError(t, err)

	path, err := r.ImportPathOf(filepath.Join(root, "models"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/app/models", path)

	path, err = r.ImportPathOf(root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", path)

	_, err = r.ImportPathOf(t.TempDir())
	assert.Error(t, err)
}

func TestFindThirdPartyPackage(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("GOMODCACHE", cache)
	writeFile(t, filepath.Join(cache, "github.com", "!acme", "lib@v1.2.0", "types", "a.go"), "package types\n")

	dir, err := FindThirdPartyPackage("github.com/Acme/lib/types")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "github.com", "!acme", "lib@v1.2.0", "types"), dir)

	_, err = FindThirdPartyPackage("github.com/Acme/other")
	assert.Error(t, err)
}

func TestReadPackageName(t *testing.T) {
	root := newProject(t)
	name, err := ReadPackageName(filepath.Join(root, "models"))
	require.NoError(t, err)
	assert.Equal(t, "entity", name)

	_, err = ReadPackageName(t.TempDir())
	assert.Error(t, err)
}
