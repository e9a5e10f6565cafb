package artfs

import (
	"io"
	"strings"
)

// FileSystem provides the file backend for corpus shards.
// Source shards are read from a file system; partitioned shards, quota
// counters and resume state are written back to one. This is abstracted so
// that corpora stored in S3 can be processed without a local mirror.
type FileSystem interface {
	ListFiles(pathGlob string) ([]FileInfo, error)
	Stat(filePath string) (FileInfo, error)
	OpenReader(filePath string) (io.ReadCloser, error)
	OpenWriter(filePath string) (io.WriteCloser, error)
	DiskUsage(location string) (DiskUsageInfo, error)
	Join(elem ...string) string
	Init() error
}

// FileInfo provides information about a file
type FileInfo struct {
	Name string // file path
	Size int64  // file size in bytes
}

// DiskUsageInfo reports capacity of the volume backing a location, in bytes.
type DiskUsageInfo struct {
	Total int64
	Used  int64
	Free  int64
}

// InferFilesystem initializes a filesystem for the given location,
// choosing the backend from the path scheme.
func InferFilesystem(location string) FileSystem {
	var fs FileSystem
	if strings.HasPrefix(location, "s3://") {
		fs = &S3FileSystem{}
	} else {
		fs = &LocalFileSystem{}
	}

	fs.Init()
	return fs
}
