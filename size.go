package epub

// byteCounter is a writer that only counts what is written to it. It
// implements io.ByteWriter and io.StringWriter so html.Render writes to it
// directly instead of through a bufio.Writer.
type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

func (c *byteCounter) WriteByte(byte) error {
	*c++
	return nil
}

func (c *byteCounter) WriteString(s string) (int, error) {
	*c += byteCounter(len(s))
	return len(s), nil
}

// EstimateBytes returns the serialized size of n in bytes, using the same
// rendering path as written content documents. Nothing is cached: splitting
// mutates trees between calls, so a result only holds for the tree as it
// was at call time.
func EstimateBytes(n *Node) int64 {
	if n == nil {
		return 0
	}
	var c byteCounter
	// Render fails only for a void element with children, which
	// AppendChild and FromHTML never produce.
	if err := n.Render(&c); err != nil {
		panic("epub: " + err.Error())
	}
	return int64(c)
}
