package core

import (
	"context"
)

// DocumentExtractor defines the interface for extracting text from various document types.
type DocumentExtractor interface {
	// ExtractText parses the raw document bytes and returns its text as ordered fragments.
	// The `contentType` hint helps the extractor choose the right parsing strategy.
	ExtractText(ctx context.Context, data []byte, contentType string) ([]string, error)
}

// PageCounter reports the number of pages of a paginated document.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}
