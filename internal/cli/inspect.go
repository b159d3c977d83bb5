package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	epub "github.com/simp-lee/epubpack"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show metadata, reading order and table of contents of an ePub",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	book, err := epub.Open(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	md := book.Metadata()
	cmd.Printf("Package: %s (ePub %s)\n", book.PackagePath(), md.Version)
	if len(md.Titles) > 0 {
		cmd.Printf("Title: %s\n", md.Titles[0])
	}
	for _, a := range md.Authors {
		cmd.Printf("Author: %s\n", a.Name)
	}
	if len(md.Language) > 0 {
		cmd.Printf("Language: %s\n", strings.Join(md.Language, ", "))
	}
	for _, id := range md.Identifiers {
		cmd.Printf("Identifier: %s\n", id.Value)
	}

	switch cover, err := book.Cover(); {
	case err == nil:
		cmd.Printf("Cover: %s (%s, %d bytes)\n", cover.Path, cover.MediaType, len(cover.Data))
	case !errors.Is(err, epub.ErrNoCover):
		return fmt.Errorf("failed to read cover: %w", err)
	}

	chapters := book.Chapters()
	cmd.Printf("\nReading order (%d):\n", len(chapters))
	for i, ch := range chapters {
		title := ch.Title
		if title == "" {
			title = "-"
		}
		cmd.Printf("  %3d  %-40s %s\n", i+1, ch.Href, title)
	}

	cmd.Println("\nContents:")
	printTOC(cmd, book.TOC(), 1)

	if w := book.Warnings(); len(w) > 0 {
		cmd.Printf("\n%d warning(s):\n", len(w))
		for _, msg := range w {
			cmd.Printf("  %s\n", msg)
		}
	}
	if broken := book.Verify(); len(broken) > 0 {
		cmd.Printf("\n%d broken reference(s):\n", len(broken))
		for _, msg := range broken {
			cmd.Printf("  %s\n", msg)
		}
	}
	return nil
}

func printTOC(cmd *cobra.Command, items []epub.TOCItem, level int) {
	for _, it := range items {
		cmd.Printf("%s%s  [%s]\n", strings.Repeat("  ", level), it.Title, it.Href)
		printTOC(cmd, it.Children, level+1)
	}
}
