package sink

import (
	"context"
	"fmt"
	"strings"

	"bkup-go/internal/bk"
	"bkup-go/internal/config"
)

// NewDestinationOpener returns an opener that picks the backend from the raw
// destination: s3://bucket/prefix selects S3, anything else is a local or
// mounted path. When enc is non-nil, files are encrypted before storage.
// An S3 destination issues its requests with the ctx it was opened with.
func NewDestinationOpener(cfg config.DestinationConfig, enc bk.Encryptor) bk.DestinationOpener {
	return func(ctx context.Context, raw string) (bk.Destination, error) {
		var (
			dest bk.Destination
			err  error
		)
		switch {
		case strings.TrimSpace(raw) == "":
			return nil, fmt.Errorf("destination is empty")
		case strings.HasPrefix(raw, S3Scheme):
			dest, err = NewS3Destination(ctx, cfg, raw)
		default:
			dest, err = NewFileSystemDestination(raw)
		}
		if err != nil {
			return nil, err
		}

		if enc != nil {
			dest = NewEncryptingDestination(dest, enc)
		}
		return dest, nil
	}
}
