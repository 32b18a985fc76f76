// Package prompts provides the instruction and message templates used in a
// conversation. Templates are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

// Conversation is the file holding the voice agent's templates.
const Conversation = "conversation.json"

// file is one parsed prompt file. Every entry is parsed as a template up
// front so a broken template fails the whole file.
type file struct {
	name      string
	raw       map[string]string
	templates map[string]*template.Template
}

var (
	filesMu sync.Mutex
	files   = make(map[string]*file)
)

// Get retrieves a raw prompt template by filename and key.
// Returns an error if the file or key is not found.
func Get(filename, key string) (string, error) {
	f, err := load(filename)
	if err != nil {
		return "", err
	}
	text, ok := f.raw[key]
	if !ok {
		return "", f.missing(key)
	}
	return text, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
func MustGet(filename, key string) string {
	text, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return text
}

// Render executes the prompt as a text/template with data. Missing keys are
// an error rather than "<no value>".
func Render(filename, key string, data any) (string, error) {
	f, err := load(filename)
	if err != nil {
		return "", err
	}
	tmpl, ok := f.templates[key]
	if !ok {
		return "", f.missing(key)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return b.String(), nil
}

// MustRender is Render for templates whose data is known to be complete.
func MustRender(filename, key string, data any) string {
	text, err := Render(filename, key, data)
	if err != nil {
		panic(err)
	}
	return text
}

// List returns all available prompt keys in a file, sorted.
func List(filename string) ([]string, error) {
	f, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(f.raw))
	for key := range f.raw {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// ClearCache drops every parsed file.
func ClearCache() {
	filesMu.Lock()
	files = make(map[string]*file)
	filesMu.Unlock()
}

func load(filename string) (*file, error) {
	filesMu.Lock()
	defer filesMu.Unlock()

	if f, ok := files[filename]; ok {
		return f, nil
	}
	f, err := parseFile(filename)
	if err != nil {
		return nil, err
	}
	files[filename] = f
	return f, nil
}

func parseFile(filename string) (*file, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	f := &file{name: filename, templates: make(map[string]*template.Template)}
	if err := json.Unmarshal(data, &f.raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	for key, text := range f.raw {
		tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %s/%s: %w", filename, key, err)
		}
		f.templates[key] = tmpl
	}
	return f, nil
}

func (f *file) missing(key string) error {
	return fmt.Errorf("prompt key %q not found in %s", key, f.name)
}
