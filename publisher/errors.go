package publisher

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed       = errors.New("failed to fetch registration")
	ErrPersistFailed     = errors.New("failed to persist registration")
	ErrIncompleteForm18  = errors.New("form18 set does not cover all directors")
	ErrUploadFailed      = errors.New("document upload failed")
	ErrPublishInProgress = errors.New("publish already in progress for this registration")
)

// UploadError reports which slot's upload aborted the publish.
type UploadError struct {
	Slot string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for slot %s: %v", e.Slot, e.Err)
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
