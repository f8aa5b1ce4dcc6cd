package storage

import "io"

// ProgressFunc receives the number of bytes transferred so far and the
// expected total, which is zero when unknown.
type ProgressFunc func(done, total int64)

type progressReader struct {
	r        io.Reader
	total    int64
	done     int64
	progress ProgressFunc
}

// NewProgressReader reports every read from r to progress. A nil progress
// returns r unchanged.
func NewProgressReader(r io.Reader, total int64, progress ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.progress(p.done, p.total)
	}
	return n, err
}
