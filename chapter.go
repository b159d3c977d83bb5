package epub

import "bytes"

// RawContent returns the bytes of the chapter file without a leading
// byte order mark.
func (c Chapter) RawContent() ([]byte, error) {
	if c.book == nil {
		return nil, ErrInvalidChapter
	}
	data, err := c.book.ReadFile(c.Href)
	if err != nil {
		return nil, err
	}
	return stripBOM(data), nil
}

// Content parses the chapter body the way ParseDocument does.
func (c Chapter) Content() (*Node, error) {
	data, err := c.RawContent()
	if err != nil {
		return nil, err
	}
	body, _, err := ParseDocument(bytes.NewReader(data))
	return body, err
}

// TextContent returns the plain text of the chapter body, one line per
// paragraph or block. Scripts and styles are left out.
func (c Chapter) TextContent() (string, error) {
	body, err := c.Content()
	if err != nil {
		return "", err
	}
	return body.PlainText(), nil
}
