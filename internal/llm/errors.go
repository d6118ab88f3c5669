package llm

import "errors"

var (
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrMissingAPIKey   = errors.New("LLM API key not set")
	ErrEmptyResponse   = errors.New("LLM returned no choices")
)
