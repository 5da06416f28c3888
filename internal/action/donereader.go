package action

import (
	"io"
	"sync"
)

// doneReader wraps an io.Reader and signals when it returns io.EOF. The done
// channel is closed exactly once on the first EOF, making it safe to select
// on from a pump goroutine alongside a sibling stream's doneReader.
//
// Adapted from the teacher's containerd task-output reader of the same
// name; here it multiplexes a host os/exec process's stdout/stderr instead
// of a container's IO streams.
type doneReader struct {
	r    io.Reader
	once sync.Once
	done chan struct{}
}

func newDoneReader(r io.Reader) *doneReader {
	return &doneReader{r: r, done: make(chan struct{})}
}

func (d *doneReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err == io.EOF {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}
