package server

import (
	"bytes"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// serveHTML serves an HTML page with the client runtime injected and, when a
// base path is configured, root-absolute references rewritten under it.
func (s *DevServer) serveHTML(w http.ResponseWriter, logical string) {
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

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", noCache)
	w.Write(s.transformHTML(source))
}

type htmlScan struct {
	hasRuntime bool
	hasBase    bool
	hasHead    bool
	hasHeadEnd bool
	hasHTMLEnd bool
}

// transformHTML injects the runtime script tag and base element into a page.
// First pass scans for what the page already has; second pass splices the
// additions in, preferring the head, falling back to the end of the
// document. Pages that already load the runtime are left alone.
func (s *DevServer) transformHTML(source []byte) []byte {
	runtimeSrc := s.config.Server.Base + runtimePath
	scan := s.scanHTML(source, runtimeSrc)

	scriptTag := `<script type="module" src="` + runtimeSrc + `"></script>`
	baseTag := ""
	if s.config.Server.Base != "" && !scan.hasBase {
		baseTag = `<base href="` + s.config.Server.Base + `/">`
	}

	var out bytes.Buffer
	out.Grow(len(source) + len(scriptTag) + len(baseTag) + 2)

	z := html.NewTokenizer(bytes.NewReader(source))
	injectedBase := baseTag == ""
	injectedScript := scan.hasRuntime

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()

		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "head" {
				out.Write(s.rewriteTagRaw(raw))
				if !injectedBase {
					out.WriteString(baseTag)
					injectedBase = true
				}
				continue
			}
			out.Write(s.rewriteTagRaw(raw))
			continue

		case html.SelfClosingTagToken:
			out.Write(s.rewriteTagRaw(raw))
			continue

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				if !injectedScript {
					out.WriteString(scriptTag)
					injectedScript = true
				}
			case "html":
				if !injectedBase {
					out.WriteString(baseTag)
					injectedBase = true
				}
				if !injectedScript {
					out.WriteString(scriptTag)
					injectedScript = true
				}
			}
		}

		out.Write(raw)
	}

	if !injectedBase {
		out.WriteString(baseTag)
	}
	if !injectedScript {
		out.WriteString(scriptTag)
	}

	return out.Bytes()
}

func (s *DevServer) scanHTML(source []byte, runtimeSrc string) htmlScan {
	var scan htmlScan

	z := html.NewTokenizer(bytes.NewReader(source))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken && tt != html.EndTagToken {
			continue
		}

		token := z.Token()
		switch token.Data {
		case "head":
			if tt == html.StartTagToken {
				scan.hasHead = true
			} else if tt == html.EndTagToken {
				scan.hasHeadEnd = true
			}
		case "html":
			if tt == html.EndTagToken {
				scan.hasHTMLEnd = true
			}
		case "base":
			scan.hasBase = true
		case "script":
			for _, attr := range token.Attr {
				if attr.Key == "src" && (attr.Val == runtimeSrc || attr.Val == runtimePath) {
					scan.hasRuntime = true
				}
			}
		}
	}
	return scan
}

// rewriteTagRaw prefixes root-absolute href/src attribute values with the
// base path so pages written against / keep working when mounted below it.
// Tags without such attributes pass through byte for byte.
func (s *DevServer) rewriteTagRaw(raw []byte) []byte {
	base := s.config.Server.Base
	if base == "" {
		return raw
	}

	z := html.NewTokenizer(bytes.NewReader(raw))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return raw
	}

	token := z.Token()
	changed := false
	for i, attr := range token.Attr {
		if attr.Key != "href" && attr.Key != "src" {
			continue
		}
		if !strings.HasPrefix(attr.Val, "/") || strings.HasPrefix(attr.Val, "//") {
			continue
		}
		if strings.HasPrefix(attr.Val, base+"/") || attr.Val == base {
			continue
		}
		token.Attr[i].Val = base + attr.Val
		changed = true
	}
	if !changed {
		return raw
	}
	return []byte(token.String())
}
