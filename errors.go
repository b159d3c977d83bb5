package epub

import "errors"

var (
	// ErrInvalidPath reports a malformed package path, or a name that
	// would climb above the package root.
	ErrInvalidPath = errors.New("epub: invalid package path")

	// ErrInvalidState reports a path operation on a path with no
	// segments, such as the zero InternalPath.
	ErrInvalidState = errors.New("epub: path has no usable segments")

	// ErrNoSuchNavigationTarget reports a navigation parent that was
	// never registered.
	ErrNoSuchNavigationTarget = errors.New("epub: no such navigation target")

	// ErrDuplicateEntry reports two artifacts written to one archive
	// entry. The flat layout can fold distinct folders into one name.
	ErrDuplicateEntry = errors.New("epub: duplicate archive entry")

	// ErrInvalidEPub reports an archive that cannot be read as a
	// package, e.g. one without a package document.
	ErrInvalidEPub = errors.New("epub: invalid ePub file")

	// ErrInvalidChapter reports a Chapter that does not come from a Book.
	ErrInvalidChapter = errors.New("epub: invalid chapter handle")

	// ErrFileNotFound reports a file missing from the archive or from
	// the package being built.
	ErrFileNotFound = errors.New("epub: file not found in archive")

	// ErrNoCover reports a package without a detectable cover image.
	ErrNoCover = errors.New("epub: no cover image found")
)
