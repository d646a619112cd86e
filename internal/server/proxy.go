package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ProxyRule maps a request path prefix to an upstream target.
type ProxyRule struct {
	Prefix string
	Target *url.URL
}

// ParseProxyRules validates and orders the configured proxy map. Rules are
// sorted by descending prefix length so the most specific rule wins when
// prefixes nest (e.g. /api/v2 over /api).
func ParseProxyRules(rules map[string]string) ([]ProxyRule, error) {
	parsed := make([]ProxyRule, 0, len(rules))
	for prefix, target := range rules {
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("proxy prefix %q must start with /", prefix)
		}
		targetURL, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("proxy target for %s: %w", prefix, err)
		}
		if targetURL.Scheme != "http" && targetURL.Scheme != "https" {
			return nil, fmt.Errorf("proxy target for %s must be http or https, got %q", prefix, target)
		}
		parsed = append(parsed, ProxyRule{
			Prefix: strings.TrimSuffix(prefix, "/"),
			Target: targetURL,
		})
	}

	sort.Slice(parsed, func(i, j int) bool {
		return len(parsed[i].Prefix) > len(parsed[j].Prefix)
	})
	return parsed, nil
}

// matchProxy finds the most specific rule covering the logical path, or nil.
// A rule matches its prefix exactly or any path below it; /apix does not
// match /api.
func (s *DevServer) matchProxy(logical string) *ProxyRule {
	for i := range s.proxyRules {
		rule := &s.proxyRules[i]
		if logical == rule.Prefix || strings.HasPrefix(logical, rule.Prefix+"/") {
			return rule
		}
	}
	return nil
}

// forwardProxy relays the request to the rule's upstream. The full logical
// path is kept (prefixes are not stripped), appended to any path on the
// target URL.
func (s *DevServer) forwardProxy(w http.ResponseWriter, r *http.Request, rule *ProxyRule, logical string) {
	outURL := *rule.Target
	outURL.Path = strings.TrimSuffix(rule.Target.Path, "/") + logical
	outURL.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), body)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	for name, values := range r.Header {
		if name == "Host" || name == "Connection" {
			continue
		}
		for _, value := range values {
			outReq.Header.Add(name, value)
		}
	}

	resp, err := s.proxyClient.Do(outReq)
	if err != nil {
		s.log.Warn("proxy upstream unreachable", "prefix", rule.Prefix, "target", rule.Target.String(), "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for name, values := range resp.Header {
		if name == "Transfer-Encoding" || name == "Connection" {
			continue
		}
		for _, value := range values {
			header.Add(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
