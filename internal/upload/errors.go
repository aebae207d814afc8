package upload

import (
	"fmt"
	"strings"
)

// ValidationError lists every requirement missing before a submit. No upload is
// attempted when it is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "upload: validation failed: " + strings.Join(e.Problems, "; ")
}

// UploadError is the failure of a single file. It never aborts the rest of the batch.
type UploadError struct {
	File string
	Key  string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload: %s (%s): %v", e.File, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
