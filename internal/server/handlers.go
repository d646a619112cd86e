package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/devserve/internal/resolver"
	"github.com/conneroisu/devserve/internal/transpiler"
)

// noCache marks module responses so the browser revalidates every time;
// this is what makes the cache-busting query parameter meaningful.
const noCache = "no-cache, no-store, must-revalidate"

// handleRequest dispatches a request through the fixed priority chain:
// root redirect, client runtime, env exposure, proxy rules, public/ assets,
// then per-extension handlers, falling back to the 404 listing page.
func (s *DevServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	logical, inBase := s.logicalPath(r.URL.Path)

	if r.URL.Path == "/" || (inBase && (logical == "/" || logical == "")) {
		http.Redirect(w, r, s.config.Server.Base+"/index.html", http.StatusFound)
		return
	}
	if !inBase {
		s.serveNotFound(w)
		return
	}

	switch logical {
	case runtimePath:
		s.serveRuntime(w)
		return
	case envPath:
		if s.envScript != nil {
			s.serveEnv(w)
			return
		}
	case socketPath:
		s.handleWebSocket(w, r)
		return
	}

	if rule := s.matchProxy(logical); rule != nil {
		s.forwardProxy(w, r, rule, logical)
		return
	}

	if s.servePublic(w, logical) {
		return
	}

	if strings.HasPrefix(logical, resolver.DepsPrefix) {
		s.serveDep(w, logical)
		return
	}

	switch strings.ToLower(path.Ext(logical)) {
	case ".html", ".htm":
		s.serveHTML(w, logical)
	case ".ts", ".tsx":
		s.serveModule(w, logical)
	case ".css":
		s.serveCSS(w, logical)
	default:
		s.serveStatic(w, logical)
	}
}

// serveModule reads, transpiles, and rewrites a typed-script module. The
// response body is always freshly produced; the registry record is
// bookkeeping only.
func (s *DevServer) serveModule(w http.ResponseWriter, logical string) {
	fsPath, ok := s.resolver.FilePath(logical)
	if !ok {
		// Traversal attempts are indistinguishable from missing files.
		s.serveNotFound(w)
		return
	}

	source, err := os.ReadFile(fsPath)
	if err != nil {
		s.serveNotFound(w)
		return
	}

	kind, ok := transpiler.KindForPath(logical)
	if !ok {
		s.serveNotFound(w)
		return
	}

	code, err := transpiler.Transpile(string(source), strings.TrimPrefix(logical, "/"), kind)
	if err != nil {
		var terr *transpiler.TranspileError
		if errors.As(err, &terr) {
			s.log.Warn("transpile failed", "path", logical, "error", terr.Msg)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	timestamp := s.registry.NextTimestamp(logical)
	rewritten := s.rewriter.Rewrite(code, logical, timestamp)
	s.registry.Store(logical, rewritten, timestamp)

	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", noCache)
	io.WriteString(w, rewritten)
}

// serveDep serves a module out of the installed dependency tree. Dependency
// code gets import rewriting (its own relative imports must stay under the
// deps namespace) but no hot-update preamble.
func (s *DevServer) serveDep(w http.ResponseWriter, logical string) {
	fsPath, ok := s.resolver.FilePath(logical)
	if !ok {
		s.serveNotFound(w)
		return
	}

	source, err := os.ReadFile(fsPath)
	if err != nil {
		s.serveNotFound(w)
		return
	}

	kind, ok := transpiler.KindForPath(logical)
	if !ok {
		kind = transpiler.KindJS
	}

	code, err := transpiler.Transpile(string(source), strings.TrimPrefix(logical, "/"), kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	timestamp := s.registry.NextTimestamp(logical)
	rewritten := s.rewriter.RewriteImports(code, logical, timestamp)

	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", noCache)
	io.WriteString(w, rewritten)
}

// serveCSS passes a stylesheet through verbatim. The client runtime swaps
// link hrefs on change, so no rewriting is needed server-side.
func (s *DevServer) serveCSS(w http.ResponseWriter, logical string) {
	fsPath, ok := s.resolver.FilePath(logical)
	if !ok {
		s.serveNotFound(w)
		return
	}

	data, err := os.ReadFile(fsPath)
	if err != nil {
		s.serveNotFound(w)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/css; charset=utf-8")
	header.Set("Cache-Control", "max-age=0, must-revalidate")
	w.Write(data)
}

// servePublic serves files out of an optional public/ directory under the
// root. Returns false when the directory or file is absent so the chain
// falls through.
func (s *DevServer) servePublic(w http.ResponseWriter, logical string) bool {
	publicDir := filepath.Join(s.config.Server.Root, "public")
	info, err := os.Stat(publicDir)
	if err != nil || !info.IsDir() {
		return false
	}

	cleaned := path.Clean("/" + logical)
	fsPath := filepath.Join(publicDir, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(fsPath, publicDir+string(filepath.Separator)) {
		return false
	}

	fileInfo, err := os.Stat(fsPath)
	if err != nil || fileInfo.IsDir() {
		return false
	}

	s.writeStaticFile(w, fsPath)
	return true
}

// serveStatic serves any other file under the root by extension-derived
// content type.
func (s *DevServer) serveStatic(w http.ResponseWriter, logical string) {
	fsPath, ok := s.resolver.FilePath(logical)
	if !ok {
		s.serveNotFound(w)
		return
	}

	info, err := os.Stat(fsPath)
	if err != nil || info.IsDir() {
		s.serveNotFound(w)
		return
	}

	s.writeStaticFile(w, fsPath)
}

func (s *DevServer) writeStaticFile(w http.ResponseWriter, fsPath string) {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		s.serveNotFound(w)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(fsPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "max-age=0, must-revalidate")
	w.Write(data)
}

// serveRuntime serves the generated browser client.
func (s *DevServer) serveRuntime(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", noCache)
	w.Write(s.runtimeJS)
}

// serveEnv serves the prefix-filtered environment as a global assignment.
func (s *DevServer) serveEnv(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", noCache)
	w.Write(s.envScript)
}

// serveNotFound renders the 404 listing page: every reachable file in the
// root as a navigation aid for mistyped URLs.
func (s *DevServer) serveNotFound(w http.ResponseWriter) {
	body := buildListing(s.config.Server.Root, s.config.Server.Base, s.config.Watch.Ignore)

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, body)
}
