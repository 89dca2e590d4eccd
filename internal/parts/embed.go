package parts

import (
	"embed"
	"io/fs"
)

// catalogue holds the built-in part definitions and their templates:
//   - catalogue/*.yaml           definition files
//   - catalogue/templates/<key>.html
//
//go:embed catalogue
var catalogue embed.FS

// CatalogueFS returns the embedded catalogue rooted at its top directory.
func CatalogueFS() fs.FS {
	sub, err := fs.Sub(catalogue, "catalogue")
	if err != nil {
		panic(err)
	}
	return sub
}
