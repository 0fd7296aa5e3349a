package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/user"
)

const contactColumns = "DISTINCT u.id, u.nom, u.email, u.user_type, u.avatar_url"

type messageRepository struct {
	db *gorm.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo messageRepository) QueryThread(ctx context.Context, conversationID string) ([]message.Message, error) {
	msgs := make([]message.Message, 0)
	err := repo.db.WithContext(ctx).
		Where("conversation_id = ? AND archived = ?", conversationID, false).
		Order("created_at").Order("id").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying thread")
	}
	return msgs, nil
}

func (repo messageRepository) MarkThreadRead(ctx context.Context, conversationID string, userID int) error {
	err := repo.db.WithContext(ctx).Model(&message.Message{}).
		Where("conversation_id = ? AND destinataire_id = ? AND lu = ?", conversationID, userID, false).
		Update("lu", true).Error
	return errors.Wrap(err, "marking thread read")
}

func (repo messageRepository) GetMessage(ctx context.Context, id int) (message.Message, error) {
	var m message.Message
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return message.Message{}, trapNotFound(err, message.ErrNotFound, "finding message")
	}
	return m, nil
}

func (repo messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo messageRepository) UpdateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if err := repo.db.WithContext(ctx).Save(&m).Error; err != nil {
		return message.Message{}, errors.Wrap(err, "updating message")
	}
	return m, nil
}

func (repo messageRepository) CountUnread(ctx context.Context, userID int) (int, error) {
	var cnt int64
	err := repo.db.WithContext(ctx).Model(&message.Message{}).
		Where("destinataire_id = ? AND lu = ? AND archived = ?", userID, false, false).
		Count(&cnt).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return int(cnt), nil
}

func (repo messageRepository) queryContacts(tx *gorm.DB) ([]message.Contact, error) {
	contacts := make([]message.Contact, 0)
	if err := tx.Order("u.nom").Scan(&contacts).Error; err != nil {
		return nil, errors.Wrap(err, "querying contacts")
	}
	return contacts, nil
}

func (repo messageRepository) QueryEleveContacts(ctx context.Context, merkezID int) ([]message.Contact, error) {
	return repo.queryContacts(repo.db.WithContext(ctx).
		Table("users u").
		Select(contactColumns).
		Joins("JOIN eleves e ON e.user_id = u.id").
		Where("e.merkez_id = ? AND u.is_active = ?", merkezID, true))
}

func (repo messageRepository) QueryMerkezContacts(ctx context.Context, userID int) ([]message.Contact, error) {
	return repo.queryContacts(repo.db.WithContext(ctx).
		Table("users u").
		Select(contactColumns).
		Joins("JOIN eleves e ON e.merkez_id = u.merkez_id").
		Where("e.user_id = ? AND u.user_type = ? AND u.is_active = ?", userID, user.TypeProf, true))
}
