//go:build property

package resolver

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestResolverProperties validates the resolver's core contract: any
// syntactically valid specifier resolves to a rooted URL without error.
func TestResolverProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	r := New(t.TempDir())

	segment := gen.RegexMatch(`[a-z][a-z0-9_-]{0,8}`)
	dots := gen.OneConstOf(".", "..")

	specifier := gen.SliceOfN(4, gen.OneGenOf(segment, dots)).Map(func(parts []string) string {
		return strings.Join(parts, "/")
	})
	importerDir := gen.SliceOfN(3, segment).Map(func(parts []string) string {
		return "/" + strings.Join(parts, "/")
	})

	properties.Property("resolved URLs always start with /", prop.ForAll(
		func(spec string, dir string) bool {
			resolved := r.Resolve("./"+spec, dir)
			return strings.HasPrefix(resolved, "/")
		},
		specifier, importerDir,
	))

	properties.Property("root-absolute specifiers stay rooted after cleaning", prop.ForAll(
		func(spec string) bool {
			resolved := r.Resolve("/"+spec, "/anywhere")
			return strings.HasPrefix(resolved, "/") && !strings.Contains(resolved, "..")
		},
		specifier,
	))

	properties.Property("extensionless resolutions end in a known extension", prop.ForAll(
		func(spec string, dir string) bool {
			resolved := r.Resolve("./"+spec, dir)
			for _, ext := range sourceExts {
				if strings.HasSuffix(resolved, ext) {
					return true
				}
			}
			// Specifiers whose last segment contains a dot keep it as
			// their extension.
			return strings.Contains(resolved[strings.LastIndex(resolved, "/")+1:], ".")
		},
		specifier, importerDir,
	))

	properties.TestingRun(t)
}
