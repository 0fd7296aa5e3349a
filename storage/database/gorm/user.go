package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	tx := repo.db.WithContext(ctx).Model(&user.User{}).Where("LOWER(email) = LOWER(?)", email)
	if len(excludedIDs) > 0 {
		tx = tx.Where("id NOT IN ?", excludedIDs)
	}
	var cnt int64
	if err := tx.Count(&cnt).Error; err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if cnt > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.db.WithContext(ctx).Create(&usr).Error; err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) CreateUserWithMerkez(ctx context.Context, usr user.User, mk merkez.Merkez) (user.User, merkez.Merkez, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mk).Error; err != nil {
			return errors.Wrap(err, "inserting merkez")
		}
		usr.MerkezID = null.IntFrom(mk.ID)
		if err := tx.Create(&usr).Error; err != nil {
			return errors.Wrap(err, "inserting user")
		}
		return nil
	})
	if err != nil {
		return user.User{}, merkez.Merkez{}, err
	}
	return usr, mk, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	tx := repo.db.WithContext(ctx).Model(&user.User{})
	if filter.Search != "" {
		val := likeValue(filter.Search)
		tx = tx.Where("nom LIKE ? OR email LIKE ?", val, val)
	}
	if filter.UserType != "" {
		tx = tx.Where("user_type = ?", filter.UserType)
	}
	if filter.IsActive != nil {
		tx = tx.Where("is_active = ?", *filter.IsActive)
	}

	users := make([]user.User, 0)
	if err := order(tx, ordering).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	tx := repo.db.WithContext(ctx)
	switch {
	case filter.ID > 0:
		tx = tx.Where("id = ?", filter.ID)
	case filter.Email != "":
		tx = tx.Where("LOWER(email) = LOWER(?)", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := tx.First(&usr).Error; err != nil {
		return user.User{}, trapNotFound(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.db.WithContext(ctx).Save(&usr).Error; err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) DeleteUser(ctx context.Context, id int) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var usr user.User
		if err := tx.Where("id = ?", id).First(&usr).Error; err != nil {
			return trapNotFound(err, user.ErrNotFound, "finding user")
		}
		if err := tx.Delete(&user.User{}, id).Error; err != nil {
			return errors.Wrap(err, "deleting user")
		}
		if usr.HasMerkez() {
			if err := tx.Delete(&merkez.Merkez{}, usr.MerkezID.Int).Error; err != nil {
				return errors.Wrap(err, "deleting merkez")
			}
		}
		return nil
	})
}
