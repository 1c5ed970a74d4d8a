// Package storage writes exported grids and downloaded documents to a
// local output directory.
package storage

import (
	"io"
	"time"
)

// File describes one artifact in the output directory.
type File struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sink is the interface for artifact output.
type Sink interface {
	// Write atomically writes content to name (relative to the output root).
	Write(name string, content []byte) error
	// WriteFrom streams fn's output to name. Nothing is left behind when fn fails.
	WriteFrom(name string, fn func(w io.Writer) error) error
	// List returns every regular file under the output root.
	List() ([]File, error)
}
