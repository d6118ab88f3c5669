package tabular

import "errors"

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrNoHeader               = errors.New("no header row")
	ErrUnsupportedShape       = errors.New("unsupported JSON shape")
	ErrReservedTableName      = errors.New("reserved table name")
)
