package storage

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrSparseMismatch    = errors.New("sparse vector indices and values differ in length")
	ErrTableExists       = errors.New("table already exists")
	ErrReadOnlyQuery     = errors.New("only read-only statements are allowed")
	ErrEmptyTable        = errors.New("table has no columns")
)
