// Package optimize maps file extensions to the transforms applied to
// artifacts before they are placed in the build output.
package optimize

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/tdewolff/minify/v2"
	mcss "github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	mjs "github.com/tdewolff/minify/v2/js"
	msvg "github.com/tdewolff/minify/v2/svg"

	derrors "sitewright/internal/errors"
)

// scriptMarker gates script minification: only files that declare strict mode
// in their first bytes are rewritten, legacy scripts pass through untouched.
const scriptMarker = "'use strict';"

// Transform is one registered optimization.
type Transform struct {
	Name string
	// SizeStable reports whether output length tracks input length. The
	// artifact writer compares sizes during staleness checks only for
	// size-stable transforms.
	SizeStable bool
	Apply      func(src []byte) ([]byte, error)
}

// Dispatcher selects a Transform by file extension. The zero value is not
// usable; construct with NewDispatcher.
type Dispatcher struct {
	m           *minify.M
	table       map[string]Transform
	passthrough Transform
}

// NewDispatcher builds the registration table: .html, .css, .js and .svg get
// minification, everything else passes through byte-identical.
func NewDispatcher() *Dispatcher {
	m := minify.New()
	m.Add("text/html", &mhtml.Minifier{KeepQuotes: true})
	m.AddFunc("text/css", mcss.Minify)
	m.AddFunc("application/javascript", mjs.Minify)
	m.AddFunc("image/svg+xml", msvg.Minify)

	d := &Dispatcher{
		m:     m,
		table: make(map[string]Transform),
		passthrough: Transform{
			Name:       "passthrough",
			SizeStable: true,
			Apply: func(src []byte) ([]byte, error) {
				return src, nil
			},
		},
	}

	d.register(".html", Transform{Name: "html-minify", Apply: d.minifier("text/html")})
	d.register(".css", Transform{Name: "css-minify", Apply: d.minifier("text/css")})
	d.register(".js", Transform{Name: "js-minify", Apply: d.minifyScript})
	d.register(".svg", Transform{Name: "svg-minify", Apply: d.minifier("image/svg+xml")})
	return d
}

func (d *Dispatcher) register(ext string, t Transform) {
	d.table[ext] = t
}

func (d *Dispatcher) minifier(mediatype string) func([]byte) ([]byte, error) {
	return func(src []byte) ([]byte, error) {
		out, err := d.m.Bytes(mediatype, src)
		if err != nil {
			return nil, fmt.Errorf("minify %s: %w", mediatype, err)
		}
		return out, nil
	}
}

// minifyScript rewrites strict-mode scripts and leaves legacy ones alone.
func (d *Dispatcher) minifyScript(src []byte) ([]byte, error) {
	if !bytes.HasPrefix(src, []byte(scriptMarker)) {
		return src, nil
	}
	out, err := d.m.Bytes("application/javascript", src)
	if err != nil {
		return nil, fmt.Errorf("minify script: %w", err)
	}
	return out, nil
}

// Lookup returns the transform registered for the extension (including the
// dot), or the pass-through transform when none is registered.
func (d *Dispatcher) Lookup(extension string) Transform {
	if t, ok := d.table[strings.ToLower(extension)]; ok {
		return t
	}
	return d.passthrough
}

// Transform applies the registered transform for the extension to src.
// A transform failure is fatal; the artifact must not reach the build tree.
func (d *Dispatcher) Transform(src []byte, extension string) ([]byte, error) {
	t := d.Lookup(extension)
	out, err := t.Apply(src)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryTransform, "transform failed").
			WithContext("transform", t.Name).
			WithContext("extension", extension)
	}
	return out, nil
}

// SizeStable reports whether the transform for the extension preserves a
// size relationship between input and output.
func (d *Dispatcher) SizeStable(extension string) bool {
	return d.Lookup(extension).SizeStable
}

// Extensions lists the registered extensions in stable order.
func (d *Dispatcher) Extensions() []string {
	exts := make([]string, 0, len(d.table))
	for ext := range d.table {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
