package repository

import (
	"github.com/smallbiznis/estately/internal/activity/domain"
	"github.com/smallbiznis/estately/pkg/repository"
	"gorm.io/gorm"
)

func Provide(db *gorm.DB) domain.Repository {
	return repository.ProvideStore[domain.Activity](db)
}
