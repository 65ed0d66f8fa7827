// Package prompt provides the named system-prompt templates that seed a
// bridge session.
//
// Templates are plain text files compiled into the binary; selecting one by
// name keeps the CLI surface small while allowing alternative personas to
// ship with the bridge.
package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.txt
var templates embed.FS

// DefaultTemplate is the template used when no name is given.
const DefaultTemplate = "default"

// Builder holds one loaded template.
type Builder struct {
	name   string
	system string
}

// New loads the named template. Returns an error naming the template when
// it does not exist.
func New(name string) (*Builder, error) {
	if name == "" {
		name = DefaultTemplate
	}
	data, err := templates.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("prompt: template %q not found", name)
	}
	return &Builder{name: name, system: strings.TrimSpace(string(data))}, nil
}

// SystemPrompt returns the template's system instruction, ready to seed a
// session transcript.
func (b *Builder) SystemPrompt() string {
	return b.system
}
