package ports

// BlobStore is a fixed-size non-volatile byte region. Writes are staged until
// Commit, which must not return before the data is durable.
type BlobStore interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Commit() error
	Size() int64
}
