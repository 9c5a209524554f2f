package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

func TestRejectRetryableClassifiesContention(t *testing.T) {
	repo := NewRepository(nil)

	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable} {
		t.Run(code, func(t *testing.T) {
			// the insert and count statements surface driver errors wrapped by pgx
			err := repo.rejectRetryable(fmt.Errorf("insert progress: %w", &pgconn.PgError{Code: code, Message: "conflict"}))
			require.ErrorIs(t, err, domain.ErrRetryable)
		})
	}
}

func TestRejectRetryableLeavesOtherErrors(t *testing.T) {
	repo := NewRepository(nil)

	checkViolation := &pgconn.PgError{Code: "23514", Message: "check violation"}
	err := repo.rejectRetryable(checkViolation)
	require.NotErrorIs(t, err, domain.ErrRetryable)
	require.Same(t, checkViolation, err)

	plain := errors.New("connection reset")
	require.Same(t, plain, repo.rejectRetryable(plain))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: codeUniqueViolation}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: codeDeadlockDetected}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
