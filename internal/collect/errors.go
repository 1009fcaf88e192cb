package collect

import "fmt"

// CollectionError wraps a file-system failure during collection with the
// offending path.
type CollectionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// OversizedFileError reports a file exceeding the per-file size limit.
type OversizedFileError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *OversizedFileError) Error() string {
	return fmt.Sprintf("file %s is %d bytes, exceeding the %d byte limit", e.Path, e.Size, e.Limit)
}

// DisallowedFileError reports a file whose type is not accepted for
// submission.
type DisallowedFileError struct {
	Path      string
	Extension string
}

func (e *DisallowedFileError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("file %s has no extension and is not an allowed bare filename", e.Path)
	}
	return fmt.Sprintf("file %s has disallowed extension %q", e.Path, e.Extension)
}

// NoSourcesError reports an empty source set, which makes contract file
// detection impossible.
type NoSourcesError struct {
	Package string
}

func (e *NoSourcesError) Error() string {
	return fmt.Sprintf("package %s contains no source files", e.Package)
}
