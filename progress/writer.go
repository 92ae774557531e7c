package progress

// CountingWriter reports the fraction of an expected byte total as data is
// written through it. It is the bridge between io.Copy style transfers and a
// Reporter. When the total is unknown (<= 0) nothing is reported.
type CountingWriter struct {
	reporter Reporter
	total    int64
	written  int64
}

// NewCountingWriter returns a writer reporting written/total to reporter.
func NewCountingWriter(reporter Reporter, total int64) *CountingWriter {
	if reporter == nil {
		reporter = Discard
	}
	return &CountingWriter{reporter: reporter, total: total}
}

func (w *CountingWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		w.reporter.Report(float64(w.written) / float64(w.total))
	}
	return len(p), nil
}

// Written returns the number of bytes passed through so far.
func (w *CountingWriter) Written() int64 {
	return w.written
}
