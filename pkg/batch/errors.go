package batch

import "errors"

var (
	// ErrEmptyBatch is returned by ProcessItems for an empty item list.
	ErrEmptyBatch = errors.New("batch has no items")

	// ErrBatchActive is returned by ProcessItems while another batch is
	// running, paused or stopping.
	ErrBatchActive = errors.New("a batch is already active")

	// ErrCallbackFailed marks item failures caused by the content callback
	// rather than by the workflow.
	ErrCallbackFailed = errors.New("content callback failed")
)
