// Package transpiler adapts esbuild's transform API for per-request
// compilation of typed-script and typed-markup sources to browser ESM with
// inline source maps.
package transpiler

import (
	"fmt"
	"path"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Kind selects the loader for a source file.
type Kind int

const (
	// KindScript is plain typed-script (.ts).
	KindScript Kind = iota
	// KindMarkup is typed markup with JSX syntax (.tsx).
	KindMarkup
	// KindJS is already-JavaScript module code (dependency files), passed
	// through the same pipeline for a consistent output format.
	KindJS
)

// KindForPath returns the loader kind for a server path, and whether the
// extension is one the transpiler handles.
func KindForPath(p string) (Kind, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".ts":
		return KindScript, true
	case ".tsx":
		return KindMarkup, true
	case ".js", ".mjs":
		return KindJS, true
	default:
		return 0, false
	}
}

// TranspileError is a source syntax error surfaced by the transform. The
// router turns it into a 500 response whose body is the message text.
type TranspileError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *TranspileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Transpile compiles source to an ES module with the source map embedded
// inline, so browser devtools map back to the original without a second
// request.
func Transpile(source string, filename string, kind Kind) (string, error) {
	loader := esbuild.LoaderTS
	switch kind {
	case KindMarkup:
		loader = esbuild.LoaderTSX
	case KindJS:
		loader = esbuild.LoaderJS
	}

	result := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:     loader,
		Format:     esbuild.FormatESModule,
		Target:     esbuild.ES2020,
		Platform:   esbuild.PlatformBrowser,
		Sourcemap:  esbuild.SourceMapInline,
		Sourcefile: filename,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		terr := &TranspileError{File: filename, Msg: msg.Text}
		if msg.Location != nil {
			terr.Line = msg.Location.Line
			terr.Column = msg.Location.Column
		}
		return "", terr
	}

	return string(result.Code), nil
}
