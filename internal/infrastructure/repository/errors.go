package repository

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
)

// notFoundOr maps pgx's no-rows sentinel onto the domain's not-found error
// so callers never see storage-level sentinels
func notFoundOr(err error, notFound *errors.AppError) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return errors.NewInternalError("database query failed").WithCause(err)
}
