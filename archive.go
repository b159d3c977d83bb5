package epub

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"
)

const (
	mimetypeName    = "mimetype"
	mimetypeContent = "application/epub+zip"

	// maxEntrySize bounds the decompressed size of one entry.
	maxEntrySize int64 = 256 << 20
)

// entryIndex looks up archive entries by name. Names match exactly first,
// then after NFC normalisation and case folding, the way InternalPath
// compares names. The first of several entries with one name wins.
type entryIndex struct {
	files  []*zip.File
	exact  map[string]*zip.File
	folded map[string]*zip.File
}

func newEntryIndex(files []*zip.File) *entryIndex {
	x := &entryIndex{
		files:  files,
		exact:  make(map[string]*zip.File, len(files)),
		folded: make(map[string]*zip.File, len(files)),
	}
	for _, f := range files {
		if _, dup := x.exact[f.Name]; !dup {
			x.exact[f.Name] = f
		}
		if key := foldName(f.Name); x.folded[key] == nil {
			x.folded[key] = f
		}
	}
	return x
}

func (x *entryIndex) lookup(name string) *zip.File {
	if f, ok := x.exact[name]; ok {
		return f
	}
	return x.folded[foldName(name)]
}

// foldName is the comparison key of an entry name.
func foldName(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// readEntry returns the decompressed bytes of f. Entries whose name
// climbs out of the archive, or that inflate beyond limit bytes, are
// refused.
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if strings.HasPrefix(f.Name, "/") {
		return nil, fmt.Errorf("epub: entry %s: absolute name: %w", f.Name, ErrInvalidPath)
	}
	if _, err := ParsePath(f.Name); err != nil {
		return nil, fmt.Errorf("epub: entry %s: %w", f.Name, err)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("epub: entry %s declares %d bytes, limit is %d", f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The declared size may lie; read one byte past the limit to tell.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("epub: read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("epub: entry %s inflates beyond %d bytes", f.Name, limit)
	}
	return data, nil
}

// stripBOM drops a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// archiveWriter writes package entries. Entry names are unique
// case-insensitively, as readers look them up that way.
type archiveWriter struct {
	zw    *zip.Writer
	names map[string]string // folded name -> name as written
}

func newArchiveWriter(w io.Writer) *archiveWriter {
	return &archiveWriter{zw: zip.NewWriter(w), names: make(map[string]string)}
}

// reserve records name, failing with ErrDuplicateEntry when it was
// already written.
func (a *archiveWriter) reserve(name string) error {
	key := foldName(name)
	if prev, ok := a.names[key]; ok {
		return fmt.Errorf("epub: %s collides with %s: %w", name, prev, ErrDuplicateEntry)
	}
	a.names[key] = name
	return nil
}

// writeMimetype writes the stored "mimetype" entry. It must be the first
// entry and carry no data descriptor, so it is written raw.
func (a *archiveWriter) writeMimetype() error {
	if err := a.reserve(mimetypeName); err != nil {
		return err
	}
	data := []byte(mimetypeContent)
	fw, err := a.zw.CreateRaw(&zip.FileHeader{
		Name:               mimetypeName,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	})
	if err != nil {
		return fmt.Errorf("epub: create mimetype: %w", err)
	}
	_, err = fw.Write(data)
	return err
}

// create starts a deflated entry.
func (a *archiveWriter) create(name string) (io.Writer, error) {
	if err := a.reserve(name); err != nil {
		return nil, err
	}
	fw, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("epub: create %s: %w", name, err)
	}
	return fw, nil
}

// writeFile writes a whole deflated entry.
func (a *archiveWriter) writeFile(name string, data []byte) error {
	fw, err := a.create(name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("epub: write %s: %w", name, err)
	}
	return nil
}

// writeXML serializes doc into a deflated entry.
func (a *archiveWriter) writeXML(name string, doc *etree.Document) error {
	fw, err := a.create(name)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(fw); err != nil {
		return fmt.Errorf("epub: write %s: %w", name, err)
	}
	return nil
}

// Close finishes the archive. It does not close the underlying writer.
func (a *archiveWriter) Close() error {
	return a.zw.Close()
}
