// Package config reads the YAML description of a book built by epubgen.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	epub "github.com/simp-lee/epubpack"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid book description")

// Book is the top-level book description.
type Book struct {
	Title       string   `yaml:"title"`
	Authors     []Author `yaml:"authors,omitempty"`
	Language    string   `yaml:"language,omitempty"`
	Identifier  string   `yaml:"identifier,omitempty"`
	Publisher   string   `yaml:"publisher,omitempty"`
	Date        string   `yaml:"date,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Rights      string   `yaml:"rights,omitempty"`
	Subjects    []string `yaml:"subjects,omitempty"`

	Output Output `yaml:"output,omitempty"`

	Stylesheets []Stylesheet `yaml:"stylesheets,omitempty"`
	Images      []string     `yaml:"images,omitempty"`
	Cover       string       `yaml:"cover,omitempty"`
	Chapters    []Chapter    `yaml:"chapters"`

	// dir is the directory relative file names resolve against.
	dir string
}

// Author is a book creator.
type Author struct {
	Name   string `yaml:"name"`
	FileAs string `yaml:"file_as,omitempty"`
	Role   string `yaml:"role,omitempty"`
}

// Output holds the packaging options.
type Output struct {
	Version         int    `yaml:"version,omitempty"`
	Flat            bool   `yaml:"flat,omitempty"`
	MaxSectionBytes int64  `yaml:"max_section_bytes,omitempty"`
	ContentDir      string `yaml:"content_dir,omitempty"`
}

// Stylesheet is a CSS file with the font files it refers to as
// fonts/<base name>.
type Stylesheet struct {
	File  string   `yaml:"file"`
	Fonts []string `yaml:"fonts,omitempty"`
}

// Chapter is one entry of the chapter tree. File is an .xhtml, .html or
// .md source; a chapter without a file only groups its children.
type Chapter struct {
	Title    string    `yaml:"title,omitempty"`
	File     string    `yaml:"file,omitempty"`
	Children []Chapter `yaml:"children,omitempty"`
}

// Load reads and validates the book description at path.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data, dir)
}

// Parse decodes and validates a book description. Unknown keys are
// rejected. Relative file names resolve against dir.
func Parse(data []byte, dir string) (*Book, error) {
	var b Book
	if err := yaml.UnmarshalStrict(data, &b); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	b.dir = dir
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate reports every problem of the description at once.
func (b *Book) Validate() error {
	var errs []error
	if b.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if len(b.Chapters) == 0 {
		errs = append(errs, errors.New("at least one chapter is required"))
	}
	switch b.Output.Version {
	case 0, 2, 3:
	default:
		errs = append(errs, fmt.Errorf("output.version must be 2 or 3, got %d", b.Output.Version))
	}
	for i, s := range b.Stylesheets {
		if s.File == "" {
			errs = append(errs, fmt.Errorf("stylesheets[%d]: file is required", i))
		}
	}
	for i, a := range b.Authors {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("authors[%d]: name is required", i))
		}
	}
	errs = append(errs, validateChapters(b.Chapters, "chapters")...)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validateChapters(chapters []Chapter, at string) []error {
	var errs []error
	for i, c := range chapters {
		where := fmt.Sprintf("%s[%d]", at, i)
		if c.File == "" && len(c.Children) == 0 {
			errs = append(errs, fmt.Errorf("%s: file is required for a chapter without children", where))
		}
		errs = append(errs, validateChapters(c.Children, where+".children")...)
	}
	return errs
}

// Resolve returns name resolved against the directory of the description.
func (b *Book) Resolve(name string) string {
	if filepath.IsAbs(name) || b.dir == "" {
		return name
	}
	return filepath.Join(b.dir, name)
}

// Metadata converts the description into package metadata.
func (b *Book) Metadata() epub.Metadata {
	md := epub.Metadata{
		Titles:      []string{b.Title},
		Publisher:   b.Publisher,
		Date:        b.Date,
		Description: b.Description,
		Rights:      b.Rights,
		Subjects:    append([]string(nil), b.Subjects...),
	}
	for _, a := range b.Authors {
		md.Authors = append(md.Authors, epub.Author{Name: a.Name, FileAs: a.FileAs, Role: a.Role})
	}
	if b.Language != "" {
		md.Language = []string{b.Language}
	}
	if b.Identifier != "" {
		md.Identifiers = []epub.Identifier{{Value: b.Identifier}}
	}
	return md
}

// Options converts the output section into builder options.
func (b *Book) Options() []epub.Option {
	opts := []epub.Option{epub.WithFlatLayout(b.Output.Flat)}
	if b.Output.Version != 0 {
		opts = append(opts, epub.WithVersion(b.Output.Version))
	}
	if b.Output.MaxSectionBytes > 0 {
		opts = append(opts, epub.WithMaxSectionBytes(b.Output.MaxSectionBytes))
	}
	if b.Output.ContentDir != "" {
		opts = append(opts, epub.WithContentDir(b.Output.ContentDir))
	}
	return opts
}
