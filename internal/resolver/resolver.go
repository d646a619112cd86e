// Package resolver turns import specifiers into canonical server-relative
// URLs under a single served root, and maps those URLs back to filesystem
// paths for serving.
package resolver

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DepsPrefix namespaces URLs for modules resolved out of node_modules so
// they can never collide with source-tree paths.
const DepsPrefix = "/@deps/"

// sourceExts is the probe order when a specifier omits its extension. The
// typed-script extension is also the fallback when nothing exists on disk.
var sourceExts = []string{".tsx", ".ts", ".js"}

// Resolver resolves specifiers against a served root directory.
type Resolver struct {
	root        string // absolute path of the served root
	nodeModules string // absolute path of the dependency tree, if present
}

// New creates a resolver for the given absolute root. When a node_modules
// directory exists under the root, bare-specifier resolution is enabled.
func New(root string) *Resolver {
	r := &Resolver{root: root}
	nm := filepath.Join(root, "node_modules")
	if info, err := os.Stat(nm); err == nil && info.IsDir() {
		r.nodeModules = nm
	}
	return r
}

// Root returns the served root.
func (r *Resolver) Root() string {
	return r.root
}

// HasDeps reports whether bare-specifier resolution is available.
func (r *Resolver) HasDeps() bool {
	return r.nodeModules != ""
}

// Resolve turns a relative or root-absolute specifier plus the importing
// module's directory into a server-relative URL. The result always begins
// with "/". When the specifier has no extension the filesystem is probed in
// sourceExts order; if nothing exists the typed-script extension is assumed
// and the eventual request may 404.
func (r *Resolver) Resolve(specifier, importerDir string) string {
	var p string
	if strings.HasPrefix(specifier, "/") {
		p = path.Clean(specifier)
	} else {
		if !strings.HasPrefix(importerDir, "/") {
			importerDir = "/" + importerDir
		}
		p = path.Join(importerDir, specifier)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if path.Ext(p) == "" {
		p += r.probeExt(p)
	}
	return p
}

func (r *Resolver) probeExt(urlPath string) string {
	for _, ext := range sourceExts {
		if fsPath, ok := r.FilePath(urlPath + ext); ok {
			if info, err := os.Stat(fsPath); err == nil && !info.IsDir() {
				return ext
			}
		}
	}
	return ".ts"
}

// ResolveBare resolves a bare package specifier against the dependency tree.
// The returned URL lives under DepsPrefix and points at the package's
// declared entry file. ok is false when the tree is absent or the package is
// not installed.
func (r *Resolver) ResolveBare(specifier string) (string, bool) {
	if r.nodeModules == "" || specifier == "" {
		return "", false
	}
	// Scoped packages keep two path segments as the package name.
	name := specifier
	rest := ""
	if idx := strings.Index(specifier, "/"); idx >= 0 {
		if strings.HasPrefix(specifier, "@") {
			if second := strings.Index(specifier[idx+1:], "/"); second >= 0 {
				name = specifier[:idx+1+second]
				rest = specifier[idx+1+second+1:]
			}
		} else {
			name = specifier[:idx]
			rest = specifier[idx+1:]
		}
	}
	pkgDir := filepath.Join(r.nodeModules, filepath.FromSlash(name))
	if rest != "" {
		return DepsPrefix + name + "/" + rest, true
	}
	entry := packageEntry(pkgDir)
	if entry == "" {
		return "", false
	}
	return DepsPrefix + name + "/" + entry, true
}

// packageEntry reads the package's entry point from package.json, preferring
// the ESM "module" field over "main".
func packageEntry(pkgDir string) string {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Module string `json:"module"`
		Main   string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	entry := pkg.Module
	if entry == "" {
		entry = pkg.Main
	}
	if entry == "" {
		entry = "index.js"
	}
	return path.Clean(strings.TrimPrefix(entry, "./"))
}

// FilePath maps a server-relative URL to an absolute filesystem path. URLs
// under DepsPrefix map into node_modules; everything else maps under the
// served root. ok is false when the cleaned path would escape its base
// directory.
func (r *Resolver) FilePath(urlPath string) (string, bool) {
	base := r.root
	rel := urlPath
	if strings.HasPrefix(urlPath, DepsPrefix) {
		if r.nodeModules == "" {
			return "", false
		}
		base = r.nodeModules
		rel = strings.TrimPrefix(urlPath, DepsPrefix)
	}
	cleaned := path.Clean("/" + rel)
	fsPath := filepath.Join(base, filepath.FromSlash(cleaned))
	if fsPath != base && !strings.HasPrefix(fsPath, base+string(filepath.Separator)) {
		return "", false
	}
	return fsPath, true
}
