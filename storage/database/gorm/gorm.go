// Package gormrepos implements the domain repositories with gorm.
package gormrepos

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core"
)

// trapNotFound maps gorm "record not found" to the domain notFound error.
func trapNotFound(err error, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func order(tx *gorm.DB, ordering []core.DBOrdering) *gorm.DB {
	for _, ord := range ordering {
		tx = tx.Order(ord.String())
	}
	return tx
}

func likeValue(s string) string {
	return "%" + s + "%"
}
