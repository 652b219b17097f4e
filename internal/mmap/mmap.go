// Package mmap provides read-only memory mapping of files.
package mmap

import (
	"os"
)

// Mapping is a read-only memory-mapped file. Bytes() aliases the mapped
// region; views into it become invalid after Close.
type Mapping struct {
	data []byte
	f    *os.File
}

// Bytes returns the mapped region.
func (m *Mapping) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Close unmaps the region and closes the underlying file.
func (m *Mapping) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.data != nil {
		err = munmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{data: nil, f: f}, nil
	}
	data, err := mmap(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Mapping{data: data, f: f}, nil
}
