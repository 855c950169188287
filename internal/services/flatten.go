package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/markdave123-py/docpipe/internal/core"
	db "github.com/markdave123-py/docpipe/internal/core/database"
	"github.com/markdave123-py/docpipe/internal/models"
)

const (
	colDocumentID = "document_id"
	colFilename   = "filename"
	colMetadata   = "metadata"
)

// FlattenRecord maps one structured record onto the configured columns, in order.
// document_id, filename and metadata are filled from the record itself; every
// other column is looked up in the JSON payload by its source path.
func FlattenRecord(rec models.StructuredRecord, columns []core.Column, processed time.Time) ([]any, error) {
	row := make([]any, len(columns))
	for i, c := range columns {
		var v any
		switch c.Name {
		case colDocumentID:
			v = rec.DocumentID
			if v == "" {
				v = rec.Filename
			}
		case colFilename:
			v = rec.Filename
		case colMetadata:
			v = map[string]any{
				"extraction_date": rec.ExtractionDate.UTC().Format(time.RFC3339Nano),
				"processing_date": processed.UTC().Format(time.RFC3339Nano),
			}
		default:
			src := c.Source
			if src == "" {
				src = c.Name
			}
			v = lookup(rec.JSONData, src)
		}

		cell, err := toColumnValue(v, c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		row[i] = cell
	}
	return row, nil
}

// lookup walks a dotted path through nested objects.
func lookup(data map[string]any, dotted string) any {
	var cur any = data
	for _, part := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// toColumnValue converts a decoded JSON value into a driver argument for sqlType.
// JSON columns and nested values are serialized; scalars follow the column type.
func toColumnValue(v any, sqlType string) (any, error) {
	if v == nil {
		return nil, nil
	}
	if db.IsJSONType(sqlType) {
		return marshalJSON(v)
	}

	switch t := v.(type) {
	case map[string]any, []any:
		return marshalJSON(t)
	case json.Number:
		if db.IsTextType(sqlType) {
			return t.String(), nil
		}
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case string:
		return t, nil
	case bool:
		if db.IsTextType(sqlType) {
			return strconv.FormatBool(t), nil
		}
		return t, nil
	case float64:
		if db.IsTextType(sqlType) {
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		}
		return t, nil
	default:
		if db.IsTextType(sqlType) {
			return fmt.Sprint(t), nil
		}
		return t, nil
	}
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
