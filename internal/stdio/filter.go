// Package stdio keeps the process's standard output reserved for protocol frames.
package stdio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// IsJSONObject reports whether chunk starts with '{' once leading whitespace is
// trimmed.
func IsJSONObject(chunk []byte) bool {
	trimmed := bytes.TrimLeft(chunk, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Filter forwards only JSON-object chunks to the wrapped sink. Every other
// write reports full success without side effect. Writes are serialized so
// several producers can share one sink.
type Filter struct {
	mu      sync.Mutex
	sink    io.Writer
	dropped int
}

// NewFilter wraps sink.
func NewFilter(sink io.Writer) *Filter {
	return &Filter{sink: sink}
}

// Write implements io.Writer.
func (f *Filter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !IsJSONObject(p) {
		f.dropped++
		return len(p), nil
	}
	return f.sink.Write(p)
}

// Close closes the sink when it is closable.
func (f *Filter) Close() error {
	if c, ok := f.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Dropped returns how many chunks were discarded so far.
func (f *Filter) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Redirect routes writes made to os.Stdout through a Filter.
type Redirect struct {
	original *os.File
	writer   *os.File
	done     chan struct{}
	once     sync.Once
}

// RedirectStdout replaces os.Stdout with a pipe whose lines are pumped
// through filter, so incidental writes from any package obey the same rule as
// protocol frames. The filter must already wrap the real stdout.
func RedirectStdout(filter *Filter) (*Redirect, error) {
	if filter == nil {
		return nil, errors.New("nil filter")
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	redirect := &Redirect{
		original: os.Stdout,
		writer:   w,
		done:     make(chan struct{}),
	}
	os.Stdout = w

	go func() {
		defer close(redirect.done)
		defer r.Close()
		pump(r, filter)
	}()
	return redirect, nil
}

// Original returns the stdout file that was active before the redirect.
func (r *Redirect) Original() *os.File {
	return r.original
}

// Restore reinstates the original stdout and waits for pending lines.
func (r *Redirect) Restore() {
	r.once.Do(func() {
		os.Stdout = r.original
		_ = r.writer.Close()
		<-r.done
	})
}

func pump(r io.Reader, w io.Writer) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			_, _ = w.Write(line)
		}
		if err != nil {
			return
		}
	}
}
