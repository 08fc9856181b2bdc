package restyutil

import (
	"hwnotifier/lib/configutil"
	"log/slog"
	"os"
	"path/filepath"
)

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears `dir` and writes one file per http message
// into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := configutil.ResolvePath(filepath.Join(dir, "_"))
	if err != nil {
		return FilesystemOutput{}, err
	}
	dir = filepath.Dir(dir)
	err = os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
