package papersift

import "errors"

var (
	// ErrEmptyLibrary is returned when a library has no data rows.
	ErrEmptyLibrary = errors.New("library is empty")

	// ErrNoTitleColumn is returned when no title column can be found.
	ErrNoTitleColumn = errors.New("no title column found")

	// ErrNoAbstractColumn is returned when no abstract column can be found.
	ErrNoAbstractColumn = errors.New("no abstract column found")

	// ErrNoTitles is returned when every title cell is empty.
	ErrNoTitles = errors.New("all titles are missing")

	// ErrEmptyReference is returned for a blank reference text.
	ErrEmptyReference = errors.New("reference text is empty")

	// ErrTooManyCandidates is returned when a library exceeds the configured candidate bound.
	ErrTooManyCandidates = errors.New("too many candidates")
)
