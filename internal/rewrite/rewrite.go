// Package rewrite performs the browser-facing fixup of transpiled module
// code: relative import specifiers become canonical, cache-busted URLs and a
// hot-update preamble is prepended so modules can register acceptance
// callbacks before their own top-level code runs.
//
// The transpiler guarantees syntactically valid ESM output, so a single-pass
// text transform over the three specifier shapes is sufficient; the three
// regexes match disjoint syntax and the pass order does not matter.
package rewrite

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/conneroisu/devserve/internal/resolver"
)

// HotFactoryGlobal is the name of the browser-global installer function the
// client runtime exposes. The preamble only calls it when present, so
// modules served outside a live page still evaluate cleanly.
const HotFactoryGlobal = "__devserveHot"

var (
	reFrom          = regexp.MustCompile(`(from\s*)(['"])([^'"]+)(['"])`)
	reStaticImport  = regexp.MustCompile(`(import\s*)(['"])([^'"]+)(['"])`)
	reDynamicImport = regexp.MustCompile(`(import\s*\(\s*)(['"])([^'"]+)(['"])(\s*\))`)
)

// Rewriter rewrites module code for a particular served root and base path.
type Rewriter struct {
	resolver *resolver.Resolver
	basePath string
}

// New creates a rewriter. basePath may be empty; when set it must be
// normalized (leading slash, no trailing slash).
func New(res *resolver.Resolver, basePath string) *Rewriter {
	return &Rewriter{resolver: res, basePath: basePath}
}

// Rewrite rewrites every relative/local specifier in code to a cache-busted
// server URL and prepends the hot-update preamble for moduleURL. The
// timestamp is computed once by the caller so every import emitted in one
// response shares the same token.
func (rw *Rewriter) Rewrite(code string, moduleURL string, timestamp int64) string {
	return rw.Preamble(moduleURL) + rw.RewriteImports(code, moduleURL, timestamp)
}

// RewriteImports rewrites specifiers only, without the preamble. Used for
// dependency modules, which are rewritten but never hot-updated themselves.
func (rw *Rewriter) RewriteImports(code string, moduleURL string, timestamp int64) string {
	dir := path.Dir(moduleURL)

	code = reFrom.ReplaceAllStringFunc(code, func(m string) string {
		parts := reFrom.FindStringSubmatch(m)
		return parts[1] + parts[2] + rw.rewriteSpecifier(parts[3], dir, timestamp) + parts[4]
	})
	code = reStaticImport.ReplaceAllStringFunc(code, func(m string) string {
		parts := reStaticImport.FindStringSubmatch(m)
		return parts[1] + parts[2] + rw.rewriteSpecifier(parts[3], dir, timestamp) + parts[4]
	})
	code = reDynamicImport.ReplaceAllStringFunc(code, func(m string) string {
		parts := reDynamicImport.FindStringSubmatch(m)
		return parts[1] + parts[2] + rw.rewriteSpecifier(parts[3], dir, timestamp) + parts[4] + parts[5]
	})

	return code
}

// Preamble returns the line that assigns the module's hot-update handle.
// It must run before any of the module's own top-level statements: user code
// may call the handle synchronously at evaluation time.
func (rw *Rewriter) Preamble(moduleURL string) string {
	return fmt.Sprintf(
		"import.meta.hot = typeof globalThis.%s === %q ? globalThis.%s(%q) : void 0;\n",
		HotFactoryGlobal, "function", HotFactoryGlobal, moduleURL,
	)
}

func (rw *Rewriter) rewriteSpecifier(spec string, importerDir string, timestamp int64) string {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		resolved := rw.resolver.Resolve(spec, importerDir)
		return rw.basePath + resolved + cacheBust(resolved, timestamp)
	}
	// Bare specifier: resolve against the installed dependency tree when
	// one exists, otherwise pass through untouched.
	if depURL, ok := rw.resolver.ResolveBare(spec); ok {
		return rw.basePath + depURL + cacheBust(depURL, timestamp)
	}
	return spec
}

func cacheBust(resolvedURL string, timestamp int64) string {
	if strings.Contains(resolvedURL, "?") {
		return fmt.Sprintf("&t=%d", timestamp)
	}
	return fmt.Sprintf("?t=%d", timestamp)
}
