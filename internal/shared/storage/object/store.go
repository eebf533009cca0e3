package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey rejects ids that cannot be used as a key segment.
var ErrInvalidKey = errors.New("invalid key segment")

// ObjectStore saves and retrieves archived blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// IntelligenceKey is the archive key for a raw Intelligence response:
// intelligence/{proposalId}/{jobId}.json.
func IntelligenceKey(proposalID, jobID string) (string, error) {
	p, err := keySegment(proposalID)
	if err != nil {
		return "", fmt.Errorf("proposal id: %w", err)
	}
	j, err := keySegment(jobID)
	if err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	return path.Join("intelligence", p, j+".json"), nil
}

// keySegment keeps letters, digits, '-', '_' and '.', replacing anything else
// with '_'. Traversal and empty segments are rejected.
func keySegment(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.Contains(s, "..") {
		return "", ErrInvalidKey
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s), nil
}
