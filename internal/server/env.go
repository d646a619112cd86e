package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// LoadEnv assembles the variables exposed to the browser: dotenv files under
// the root (.env, then .env.local overriding it), then the process
// environment overriding both. Only keys carrying the given prefix survive,
// so secrets in the same files stay server-side.
func LoadEnv(root string, prefix string) map[string]string {
	merged := make(map[string]string)

	for _, name := range []string{".env", ".env.local"} {
		vars, err := gotenv.Read(filepath.Join(root, name))
		if err != nil {
			continue
		}
		for key, value := range vars {
			merged[key] = value
		}
	}

	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, present := merged[key]; present || strings.HasPrefix(key, prefix) {
			merged[key] = value
		}
	}

	exposed := make(map[string]string)
	for key, value := range merged {
		if strings.HasPrefix(key, prefix) {
			exposed[key] = value
		}
	}
	return exposed
}

// buildEnvScript renders the exposed variables as a module that assigns a
// single global object. Keys are emitted in sorted order so the script is
// stable across requests.
func buildEnvScript(vars map[string]string) []byte {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("globalThis.__DEVSERVE_ENV__ = {")
	for i, key := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		name, _ := json.Marshal(key)
		value, _ := json.Marshal(vars[key])
		fmt.Fprintf(&b, "%s:%s", name, value)
	}
	b.WriteString("};\n")
	return []byte(b.String())
}
