package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/rezonia/nfse-emitter/internal/model"
)

// notFound maps gorm.ErrRecordNotFound to a *model.NotFoundError
func notFound(err error, entity, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewNotFoundError(entity, key)
	}
	return err
}
