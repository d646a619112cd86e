package transpiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForPath(t *testing.T) {
	testCases := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"/main.ts", KindScript, true},
		{"/App.tsx", KindMarkup, true},
		{"/lib/util.js", KindJS, true},
		{"/lib/util.mjs", KindJS, true},
		{"/style.css", 0, false},
		{"/index.html", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			kind, ok := KindForPath(tc.path)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.kind, kind)
			}
		})
	}
}

func TestTranspileStripsTypes(t *testing.T) {
	out, err := Transpile("const x: number = 1;\nconsole.log(x);", "main.ts", KindScript)
	require.NoError(t, err)

	assert.Contains(t, out, "const x = 1")
	assert.NotContains(t, out, ": number")
	assert.Contains(t, out, "console.log(x)")
}

func TestTranspileEmbedsInlineSourceMap(t *testing.T) {
	out, err := Transpile("export const a = 1;", "a.ts", KindScript)
	require.NoError(t, err)

	assert.Contains(t, out, "//# sourceMappingURL=data:application/json;base64,")
}

func TestTranspileMarkup(t *testing.T) {
	src := "export function App() { return <div>hi</div>; }"
	out, err := Transpile(src, "App.tsx", KindMarkup)
	require.NoError(t, err)

	// The default JSX transform emits createElement calls.
	assert.Contains(t, out, "React.createElement")
	assert.NotContains(t, out, "<div>")
}

func TestTranspileSyntaxErrorIsDistinguishable(t *testing.T) {
	_, err := Transpile("const = broken", "bad.ts", KindScript)
	require.Error(t, err)

	var terr *TranspileError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "bad.ts", terr.File)
	assert.NotEmpty(t, terr.Msg)
	assert.Contains(t, terr.Error(), "bad.ts")
}

func TestTranspilePreservesImports(t *testing.T) {
	out, err := Transpile("import { add } from './math.ts';\nexport const s = add(1, 2);", "main.ts", KindScript)
	require.NoError(t, err)

	assert.Contains(t, out, `"./math.ts"`)
}
