package storage

// WriterMetrics describes one finished job file: where it is, how many
// items it holds and how many bytes it occupies. Imported files carry the
// metrics probed from the source file.
type WriterMetrics struct {
	FilePath string
	Items    int64
	Bytes    int64
	Imported bool
}

// Add merges another metrics value into this one.
func (m *WriterMetrics) Add(other WriterMetrics) {
	m.Items += other.Items
	m.Bytes += other.Bytes
}
