package services

import (
	"context"
	"errors"
	"io"

	"github.com/markdave123-py/docpipe/internal/core"
)

// failingList is a storage whose listing always fails, like an unreachable bucket.
type failingList struct{ core.Storage }

func (failingList) ListFiles(context.Context, string, string) ([]string, error) {
	return nil, errors.New("dial tcp: i/o timeout")
}

func (failingList) ReadFile(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("unreachable")
}

func (failingList) FullPath(folder string) (string, error) { return folder, nil }
