package ingest

import "errors"

// Sentinel errors for the ingestion pipeline, checked with errors.Is().
var (
	// ErrUnsupportedFileType indicates the mime type cannot be ingested.
	// Raised before any extraction or persistence work.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrExtractionFailed indicates text could not be pulled out of the file.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmptyDocument indicates the file contained no usable text.
	// Nothing is written when this is returned.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrStorage wraps persistence failures.
	ErrStorage = errors.New("storage error")
)
