package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"timeout", context.DeadlineExceeded, ErrorKindNetwork},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorKindNetwork},
		{"access denied", errors.New("api error AccessDenied: forbidden"), ErrorKindAuth},
		{"expired token", errors.New("ExpiredToken: the provided token has expired"), ErrorKindAuth},
		{"quota", errors.New("QuotaExceeded: bucket quota reached"), ErrorKindQuota},
		{"slow down", errors.New("SlowDown: reduce request rate"), ErrorKindRateLimited},
		{"unknown", errors.New("something odd"), ErrorKindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := Classify(tc.err)
			require.NotNil(t, se)
			assert.Equal(t, tc.kind, se.Kind)
		})
	}
}

func TestClassifyPassesThroughSyncError(t *testing.T) {
	original := NewSyncError(ErrorKindQuota, errors.New("over limit"))
	wrapped := fmt.Errorf("upload failed: %w", original)

	se := Classify(wrapped)
	assert.Same(t, original, se)
}

func TestClassifyBatchError(t *testing.T) {
	be := &BatchError{Failed: map[uuid.UUID]error{
		uuid.New(): errors.New("boom"),
	}}

	se := Classify(be)
	assert.Equal(t, ErrorKindPartialBatch, se.Kind)
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewSyncError(ErrorKindNetwork, nil).Retryable())
	assert.True(t, NewSyncError(ErrorKindRateLimited, nil).Retryable())

	// Аутентификация и квота требуют внешнего вмешательства
	assert.False(t, NewSyncError(ErrorKindAuth, nil).Retryable())
	assert.False(t, NewSyncError(ErrorKindQuota, nil).Retryable())
	assert.False(t, NewSyncError(ErrorKindConflict, nil).Retryable())
	assert.False(t, NewSyncError(ErrorKindUnknown, nil).Retryable())
}

func TestBatchErrorMessage(t *testing.T) {
	id1 := uuid.New()
	id2 := uuid.New()
	be := &BatchError{Failed: map[uuid.UUID]error{
		id1: errors.New("one"),
		id2: errors.New("two"),
	}}

	msg := be.Error()
	assert.Contains(t, msg, "2 record(s)")
	assert.Contains(t, msg, id1.String())
	assert.Contains(t, msg, id2.String())
}
