package cli

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	epub "github.com/simp-lee/epubpack"
	"github.com/simp-lee/epubpack/internal/config"
	"github.com/simp-lee/epubpack/internal/markdown"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an ePub from a book description",
	Long: `Reads a YAML book description, imports its chapters and writes the package.
Chapters ending in .md are converted from Markdown; others are read as (X)HTML.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var (
	buildConfig   string
	buildOutput   string
	buildFlat     bool
	buildMaxBytes int64
)

func init() {
	buildCmd.Flags().StringVarP(&buildConfig, "config", "c", "book.yaml", "Book description file")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output file (default: description name with .epub)")
	buildCmd.Flags().BoolVar(&buildFlat, "flat", false, "Store all files in the archive root")
	buildCmd.Flags().Int64Var(&buildMaxBytes, "max-bytes", 0, "Maximum body size of one content document")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	book, err := config.Load(buildConfig)
	if err != nil {
		return err
	}

	opts := book.Options()
	if cmd.Flags().Changed("flat") {
		opts = append(opts, epub.WithFlatLayout(buildFlat))
	}
	if cmd.Flags().Changed("max-bytes") {
		opts = append(opts, epub.WithMaxSectionBytes(buildMaxBytes))
	}
	opts = append(opts, epub.WithLogger(log))

	b := epub.NewBuilder(book.Metadata(), opts...)
	images, err := addResources(b, book)
	if err != nil {
		return err
	}
	ch := &chapterLoader{b: b, book: book, images: images, log: log}
	if err := ch.add(book.Chapters, nil); err != nil {
		return err
	}

	out := buildOutput
	if out == "" {
		out = strings.TrimSuffix(buildConfig, filepath.Ext(buildConfig)) + ".epub"
	}
	if err := writePackage(b, out); err != nil {
		return err
	}

	cmd.Printf("Wrote %s\n", out)
	if w := b.Warnings(); len(w) > 0 {
		cmd.Printf("%d warning(s):\n", len(w))
		for _, msg := range w {
			cmd.Printf("  %s\n", msg)
		}
	}
	return nil
}

// addResources adds stylesheets, fonts, images and the cover. The
// returned map holds the package path of every image by source file.
func addResources(b *epub.Builder, book *config.Book) (map[string]epub.InternalPath, error) {
	for _, s := range book.Stylesheets {
		data, err := os.ReadFile(book.Resolve(s.File))
		if err != nil {
			return nil, fmt.Errorf("failed to read stylesheet: %w", err)
		}
		css, err := b.AddStylesheet(filepath.Base(s.File), data)
		if err != nil {
			return nil, err
		}
		for _, f := range s.Fonts {
			data, err := os.ReadFile(book.Resolve(f))
			if err != nil {
				return nil, fmt.Errorf("failed to read font: %w", err)
			}
			if _, err := b.AddFont(css, filepath.Base(f), data); err != nil {
				return nil, err
			}
		}
	}

	images := make(map[string]epub.InternalPath, len(book.Images)+1)
	for _, name := range append(append([]string(nil), book.Images...), book.Cover) {
		if name == "" {
			continue
		}
		file := filepath.Clean(book.Resolve(name))
		if _, done := images[file]; done {
			continue
		}
		p, err := addImage(b, file)
		if err != nil {
			return nil, err
		}
		images[file] = p
	}

	if book.Cover == "" {
		return images, nil
	}
	return images, b.SetCover(images[filepath.Clean(book.Resolve(book.Cover))])
}

func addImage(b *epub.Builder, file string) (epub.InternalPath, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return epub.InternalPath{}, fmt.Errorf("failed to read image: %w", err)
	}
	return b.AddImage(filepath.Base(file), data)
}

// chapterLoader adds the chapter tree of a book description.
type chapterLoader struct {
	b      *epub.Builder
	book   *config.Book
	images map[string]epub.InternalPath // source file -> package path
	log    *zap.Logger
}

// add adds chapters depth-first, so every parent section exists before
// its children. A chapter without a file gets its title as a heading.
func (l *chapterLoader) add(chapters []config.Chapter, parent *epub.Section) error {
	for _, c := range chapters {
		var (
			body  *epub.Node
			title = c.Title
			file  string
		)
		if c.File != "" {
			file = l.book.Resolve(c.File)
			var docTitle string
			var err error
			body, docTitle, err = loadChapter(file)
			if err != nil {
				return err
			}
			if title == "" {
				title = docTitle
			}
		} else if title != "" {
			body = headingBody(title)
		}

		sec, err := l.b.AddSection(title, body, parent)
		if err != nil {
			return err
		}
		if body != nil && file != "" {
			if err := l.linkImages(sec, body, filepath.Dir(file)); err != nil {
				return err
			}
		}
		l.log.Debug("Added section",
			zap.String("title", title),
			zap.String("source", c.File),
			zap.Stringer("path", sec.Path()))

		if err := l.add(c.Children, sec); err != nil {
			return err
		}
	}
	return nil
}

// linkImages links every local image shown by a chapter to its package
// image. dir is the folder of the chapter source; image files not listed
// in the description are added on first use.
func (l *chapterLoader) linkImages(sec *epub.Section, body *epub.Node, dir string) error {
	for _, ref := range body.ImageRefs() {
		u, err := url.Parse(ref)
		if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" || strings.HasPrefix(u.Path, "/") {
			continue
		}
		file := filepath.Join(dir, filepath.FromSlash(u.Path))
		img, ok := l.images[file]
		if !ok {
			if img, err = addImage(l.b, file); err != nil {
				return fmt.Errorf("chapter %q: %w", sec.Title(), err)
			}
			l.images[file] = img
			l.log.Debug("Added image", zap.String("source", file), zap.Stringer("path", img))
		}
		if err := sec.LinkImage(ref, img); err != nil {
			return err
		}
	}
	return nil
}

// headingBody returns a body holding title as its only heading.
func headingBody(title string) *epub.Node {
	h := epub.NewParagraph("h1")
	h.AppendChild(epub.NewText(title))
	body := epub.NewContainer("body")
	body.AppendChild(h)
	return body
}

// loadChapter imports a chapter source file.
func loadChapter(path string) (*epub.Node, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read chapter: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdown.Parse(data)
	default:
		return epub.ParseDocument(bytes.NewReader(data))
	}
}

// writePackage writes to a temporary file next to out and renames it, so
// a failed build never leaves a truncated package behind.
func writePackage(b *epub.Builder, out string) error {
	dir := filepath.Dir(out)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".epubgen-*")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := b.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	return os.Rename(tmp, out)
}
