//go:build linux
// +build linux

// Package mmap provides read-only memory-mapped views over files.
package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNegativeSize is returned by Map for a negative length.
var ErrNegativeSize = errors.New("mmap: negative size")

// Region is a read-only mapping of a whole file. The zero-length Region holds no mapping.
type Region struct {
	data []byte
}

// Map maps the first size bytes of the file at path read-only and private.
// The file descriptor is closed before Map returns, the mapping stays valid until Unmap.
func Map(path string, size int) (*Region, error) {
	if size < 0 {
		return nil, ErrNegativeSize
	}
	if size == 0 {
		return &Region{}, nil
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	return &Region{data: data}, nil
}

// Bytes returns the mapped bytes. They must not be used after Unmap.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the length of the mapping.
func (r *Region) Len() int {
	return len(r.data)
}

// Unmap releases the mapping. Calling it more than once is a no-op.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	return os.NewSyscallError("munmap", unix.Munmap(data))
}
