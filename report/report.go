// Package report renders a rack as text with text/template and the sprig
// function library.
package report

import (
	"embed"
	"fmt"
	"io"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/mixrack"
)

//go:embed templates/*
var templateFS embed.FS

// Renderer executes a rack template.
type Renderer struct {
	Template *template.Template
	Name     string
}

// New returns a renderer using the built-in rack template.
func New() (*Renderer, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Renderer{Template: tmpl, Name: "rack.tmpl"}, nil
}

// NewFromFile returns a renderer using the template in path. The template
// gets the rack as its data and the sprig functions.
func NewFromFile(path string) (*Renderer, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf(`could not create template from "%v": %v`, path, err)
	}
	return &Renderer{Template: tmpl, Name: filepath.Base(path)}, nil
}

func (r *Renderer) Render(w io.Writer, rack mixrack.Rack) error {
	if err := r.Template.ExecuteTemplate(w, r.Name, rack); err != nil {
		return fmt.Errorf(`could not execute template "%v": %v`, r.Name, err)
	}
	return nil
}

// Render writes rack with the built-in template.
func Render(w io.Writer, rack mixrack.Rack) error {
	r, err := New()
	if err != nil {
		return err
	}
	return r.Render(w, rack)
}
