package server

import (
	"bytes"
	_ "embed"
	"strconv"
)

//go:embed runtime/client.js
var runtimeTemplate []byte

// renderRuntime fills the embedded browser client with this server's
// configuration. Placeholders rather than a template engine: the client is a
// single static file with two injection points.
func (s *DevServer) renderRuntime() []byte {
	out := bytes.ReplaceAll(runtimeTemplate, []byte("__DEVSERVE_BASE__"), []byte(strconv.Quote(s.config.Server.Base)))
	out = bytes.ReplaceAll(out, []byte("__DEVSERVE_SILENT__"), []byte(strconv.FormatBool(s.config.Server.Silent)))
	return out
}
