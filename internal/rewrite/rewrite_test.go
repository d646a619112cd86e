package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conneroisu/devserve/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRewriter(t *testing.T, basePath string) *Rewriter {
	t.Helper()
	return New(resolver.New(t.TempDir()), basePath)
}

func TestRewriteFromSpecifiers(t *testing.T) {
	rw := newRewriter(t, "")

	code := `import { add } from './math.ts';` + "\n" + `export { mul } from "../lib/mul.ts";`
	out := rw.RewriteImports(code, "/app/main.ts", 42)

	assert.Contains(t, out, `from '/app/math.ts?t=42'`)
	assert.NotContains(t, out, "'./math.ts'")
	assert.Contains(t, out, `from "/lib/mul.ts?t=42"`)
}

func TestRewriteStaticImport(t *testing.T) {
	rw := newRewriter(t, "")

	out := rw.RewriteImports(`import './setup.ts';`, "/main.ts", 7)
	assert.Contains(t, out, `import '/setup.ts?t=7'`)
}

func TestRewriteDynamicImport(t *testing.T) {
	rw := newRewriter(t, "")

	out := rw.RewriteImports(`const m = await import('./lazy.ts');`, "/pages/index.ts", 9)
	assert.Contains(t, out, `import('/pages/lazy.ts?t=9')`)
}

func TestBareSpecifiersPassThrough(t *testing.T) {
	rw := newRewriter(t, "")

	code := `import { h } from 'preact';` + "\n" + `import 'side-effect-pkg';`
	out := rw.RewriteImports(code, "/main.ts", 1)

	assert.Contains(t, out, `from 'preact'`)
	assert.Contains(t, out, `import 'side-effect-pkg'`)
}

func TestBareSpecifierResolvedAgainstDeps(t *testing.T) {
	root := t.TempDir()
	writeDep(t, root, "preact", `{"module":"dist/preact.module.js"}`)
	rw := New(resolver.New(root), "")

	out := rw.RewriteImports(`import { h } from 'preact';`, "/main.ts", 5)
	assert.Contains(t, out, `from '/@deps/preact/dist/preact.module.js?t=5'`)
}

func TestSharedTimestampAcrossImports(t *testing.T) {
	rw := newRewriter(t, "")

	code := `import './a.ts';` + "\n" + `import './b.ts';` + "\n" + `import('./c.ts');`
	out := rw.RewriteImports(code, "/main.ts", 1234)

	assert.Equal(t, 3, strings.Count(out, "?t=1234"))
}

func TestBasePathPrefix(t *testing.T) {
	rw := newRewriter(t, "/app")

	out := rw.RewriteImports(`import './x.ts';`, "/main.ts", 3)
	assert.Contains(t, out, `import '/app/x.ts?t=3'`)
}

func TestPreambleComesFirst(t *testing.T) {
	rw := newRewriter(t, "")

	out := rw.Rewrite(`console.log('hi');`, "/main.ts", 1)

	lines := strings.SplitN(out, "\n", 2)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "import.meta.hot")
	assert.Contains(t, lines[0], HotFactoryGlobal)
	assert.Contains(t, lines[0], `"/main.ts"`)
	assert.Equal(t, `console.log('hi');`, lines[1])
}

func TestRewriteLeavesNonImportCodeAlone(t *testing.T) {
	rw := newRewriter(t, "")

	code := `const s = "not an import target"; console.log(s);`
	assert.Equal(t, code, rw.RewriteImports(code, "/main.ts", 1))
}

func writeDep(t *testing.T, root string, name string, pkgJSON string) {
	t.Helper()
	dir := filepath.Join(root, "node_modules", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkgJSON), 0o644))
}
