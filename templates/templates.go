// Package templates renders the HTML pages of the paint app. Templates are
// embedded and parsed once; the Renderer is handed to the handlers that need it.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"paint-server/core"
	"paint-server/session"
	"strconv"
	"strings"
)

//go:embed html
var files embed.FS

// Renderer writes the named template with data to w.
type Renderer interface {
	Render(w io.Writer, name string, data map[string]any) error
}

type htmlRenderer struct {
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"dataURL":   dataURL,
	"nextLayer": nextLayer,
}

// New parses every embedded *.html file. Templates are looked up by file
// name, e.g. "paint.html".
func New() (Renderer, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(files, "html/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &htmlRenderer{tmpl: tmpl}, nil
}

// Static serves the non-template assets.
func Static() fs.FS {
	sub, err := fs.Sub(files, "html")
	if err != nil {
		panic(err)
	}
	return sub
}

func (r *htmlRenderer) Render(w io.Writer, name string, data map[string]any) error {
	t := r.tmpl.Lookup(name)
	if t == nil {
		return fmt.Errorf("template %q not found", name)
	}

	// Render fully before writing so a failure never leaves half a page.
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// dataURL marks a stored layer as a safe image URL. Only payloads carrying the
// PNG data URL prefix are trusted; anything else renders as an empty src.
func dataURL(imageData []byte) template.URL {
	if !bytes.HasPrefix(imageData, []byte(session.PNGDataURLPrefix)) {
		return ""
	}
	return template.URL(imageData)
}

// nextLayer suggests the id for the next new layer: one past the highest
// integer layer id present. Ids at math.MaxInt have no successor and are
// ignored.
func nextLayer(layers []*core.Layer) string {
	highest := 0
	for _, layer := range layers {
		whole, _, _ := strings.Cut(layer.LayerID, ".")
		n, err := strconv.Atoi(whole)
		if err != nil || n == math.MaxInt {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}
