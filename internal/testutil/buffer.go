// Package testutil holds helpers shared by tests that drive concurrent
// components, such as a runner logging from its own goroutine.
package testutil

import (
	"bytes"
	"strings"
	"sync"
)

// ThreadSafeBuffer is an io.Writer that may be written from several
// goroutines while a test reads it.
type ThreadSafeBuffer struct {
	buffer bytes.Buffer
	mutex  sync.Mutex
}

// Write implements io.Writer
func (b *ThreadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

// String returns the accumulated buffer as a string
func (b *ThreadSafeBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}

// Lines returns the non-empty lines written so far.
func (b *ThreadSafeBuffer) Lines() []string {
	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Reset resets the buffer to be empty
func (b *ThreadSafeBuffer) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.buffer.Reset()
}
