// Package static serves the embedded stylesheet and client script.
package static

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed css/*.css js/*.js
var assetsFS embed.FS

// Handler returns an http.Handler serving the embedded assets. Panics
// only if the embedded filesystem is corrupted, which cannot happen
// after a successful build.
func Handler() http.Handler {
	sub, err := fs.Sub(assetsFS, ".")
	if err != nil {
		panic(fmt.Sprintf("static: failed to create sub-filesystem: %v", err))
	}
	return http.FileServer(http.FS(sub))
}
