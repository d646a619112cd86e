package server

import (
	"html"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// listingLimit caps the 404 page so a huge tree (or a forgotten ignore
// pattern) cannot produce a megabyte of anchors.
const listingLimit = 500

// buildListing renders the not-found page: a sorted list of every servable
// file under the root, each linked through the configured base path.
func buildListing(root string, base string, ignore []string) string {
	var files []string

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && ignored(name, ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignored(name, ignore) || strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})

	sort.Strings(files)
	if len(files) > listingLimit {
		files = files[:listingLimit]
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>404 - Not Found</title>\n")
	b.WriteString("<style>body{font-family:monospace;margin:2rem}h1{font-size:1.2rem}li{line-height:1.6}</style>\n")
	b.WriteString("</head>\n<body>\n<h1>404 - Not Found</h1>\n<p>Available files:</p>\n<ul>\n")
	for _, rel := range files {
		href := html.EscapeString(base + "/" + rel)
		b.WriteString("<li><a href=\"" + href + "\">" + html.EscapeString(rel) + "</a></li>\n")
	}
	b.WriteString("</ul>\n</body>\n</html>\n")
	return b.String()
}

func ignored(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if name == pattern {
			return true
		}
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
