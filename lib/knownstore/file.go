package knownstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FileStore keeps the set as a json array of keys.
type FileStore struct {
	Path string
}

func NewFileStore(path string) FileStore {
	return FileStore{Path: path}
}

func (s FileStore) Load(ctx context.Context) (Set, error) {
	_, span := tracer.Start(ctx, "file:Load")
	defer span.End()

	contents, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Set{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read known set")
		return nil, err
	}

	var keys []string
	err = json.Unmarshal(contents, &keys)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse known set")
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	span.SetAttributes(attribute.Int("keys", len(keys)))
	return NewSet(keys...), nil
}

// Save writes the set to a temporary file in the same directory and
// renames it over the old one, so readers see either the old or the new
// set in full.
func (s FileStore) Save(ctx context.Context, set Set) error {
	_, span := tracer.Start(ctx, "file:Save")
	defer span.End()
	span.SetAttributes(attribute.Int("keys", len(set)))

	contents, err := json.MarshalIndent(set.Keys(), "", "  ")
	if err != nil {
		return err
	}

	err = writeAtomic(s.Path, contents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write known set")
		return err
	}
	return nil
}

func writeAtomic(path string, contents []byte) error {
	suffix, err := random.String(8)
	if err != nil {
		return err
	}
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, suffix))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	_, err = f.Write(contents)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
