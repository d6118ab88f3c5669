package dataset

import "errors"

var (
	ErrInvalidDataset  = errors.New("invalid dataset")
	ErrMissingField    = errors.New("missing required field")
	ErrUnsupportedURL  = errors.New("url not handled by fetcher")
	ErrFetchFailed     = errors.New("content fetch failed")
	ErrUnknownProperty = errors.New("unknown property value")
)
