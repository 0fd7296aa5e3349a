package message

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	ErrNotFound = fmt.Errorf("message %w", core.ErrNotFound)

	errSelf = errors.New("you cannot send a message to yourself")

	attachmentTypes = []string{
		"application/pdf",
		"image/jpeg", "image/png", "image/webp", "image/gif",
		"audio/mpeg", "audio/wav", "audio/ogg",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

type (
	Repository interface {
		QueryThread(ctx context.Context, conversationID string) ([]Message, error)
		// MarkThreadRead flags every unread message of the conversation received by userID.
		MarkThreadRead(ctx context.Context, conversationID string, userID int) error
		GetMessage(ctx context.Context, id int) (Message, error)
		CreateMessage(ctx context.Context, m Message) (Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		CountUnread(ctx context.Context, userID int) (int, error)
		// QueryEleveContacts returns the accounts of the students of the merkez.
		QueryEleveContacts(ctx context.Context, merkezID int) ([]Contact, error)
		// QueryMerkezContacts returns the owner accounts of the merkez holding a student linked to userID.
		QueryMerkezContacts(ctx context.Context, userID int) ([]Contact, error)
	}

	ReportRepository interface {
		QueryConversations(ctx context.Context, userID int) ([]Conversation, error)
	}

	Service interface {
		Conversations(ctx context.Context, usr user.User) ([]Conversation, error)
		Thread(ctx context.Context, usr user.User, otherID int) ([]Message, error)
		Send(ctx context.Context, usr user.User, nm NewMessage) (Message, error)
		SendFile(ctx context.Context, usr user.User, nm NewMessage, up core.Upload) (Message, error)
		MarkRead(ctx context.Context, usr user.User, id int) (Message, error)
		Delete(ctx context.Context, usr user.User, id int) error
		UnreadCount(ctx context.Context, usr user.User) (int, error)
		Contacts(ctx context.Context, usr user.User) ([]Contact, error)
	}

	service struct {
		repo    Repository
		reports ReportRepository
		usrSvc  user.Service
		files   core.FileStorage
	}
)

func NewService(repo Repository, reports ReportRepository, usrSvc user.Service, files core.FileStorage) Service {
	return &service{
		repo:    repo,
		reports: reports,
		usrSvc:  usrSvc,
		files:   files,
	}
}

func (svc *service) Conversations(ctx context.Context, usr user.User) ([]Conversation, error) {
	convs, err := svc.reports.QueryConversations(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	for i := range convs {
		convs[i].DernierMessage = core.Truncate(convs[i].DernierMessage, PreviewLength)
	}
	return convs, nil
}

func (svc *service) Thread(ctx context.Context, usr user.User, otherID int) ([]Message, error) {
	convID := ConversationID(usr.ID, otherID)
	msgs, err := svc.repo.QueryThread(ctx, convID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	if err = svc.repo.MarkThreadRead(ctx, convID, usr.ID); err != nil {
		return nil, errors.Wrap(err, "marking conversation read")
	}
	for i := range msgs {
		if msgs[i].DestinataireID == usr.ID {
			msgs[i].Lu = true
		}
	}
	return msgs, nil
}

func (svc *service) newMessage(ctx context.Context, usr user.User, nm NewMessage) (Message, error) {
	if nm.DestinataireID == usr.ID {
		return Message{}, core.NewFieldError("destinataire_id", errSelf.Error())
	}
	dest, err := svc.usrSvc.GetByID(ctx, nm.DestinataireID)
	if err != nil {
		return Message{}, err
	}
	now := time.Now().UTC()
	return Message{
		ExpediteurID:     usr.ID,
		DestinataireID:   dest.ID,
		ExpediteurType:   usr.UserType,
		DestinataireType: dest.UserType,
		Sujet:            null.NewString(nm.Sujet, nm.Sujet != ""),
		Contenu:          null.NewString(nm.Contenu, nm.Contenu != ""),
		ConversationID:   ConversationID(usr.ID, dest.ID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (svc *service) Send(ctx context.Context, usr user.User, nm NewMessage) (Message, error) {
	m, err := svc.newMessage(ctx, usr, nm)
	if err != nil {
		return Message{}, err
	}
	if m, err = svc.repo.CreateMessage(ctx, m); err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	return m, nil
}

func (svc *service) SendFile(ctx context.Context, usr user.User, nm NewMessage, up core.Upload) (Message, error) {
	m, err := svc.newMessage(ctx, usr, nm)
	if err != nil {
		return Message{}, err
	}
	ct, content, err := core.SniffContentType(up.Content, attachmentTypes...)
	if err != nil {
		return Message{}, err
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	name := uuid.New().String() + ext
	stored, err := svc.files.Save(ctx, "messages", name, content)
	if err != nil {
		return Message{}, errors.Wrap(err, "saving attachment")
	}

	m.FichierNom = null.StringFrom(filepath.Base(up.Filename))
	m.FichierURL = null.StringFrom(stored.URL)
	m.FichierType = null.StringFrom(ct)
	m.FichierTaille = null.Int64From(stored.Size)
	if m, err = svc.repo.CreateMessage(ctx, m); err != nil {
		_ = svc.files.Delete(ctx, stored.URL)
		return Message{}, errors.Wrap(err, "creating message")
	}
	return m, nil
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id int) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.DestinataireID != usr.ID {
		return Message{}, ErrNotFound
	}
	if m.Lu {
		return m, nil
	}
	m.Lu = true
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMessage(ctx, m)
}

func (svc *service) Delete(ctx context.Context, usr user.User, id int) error {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if !m.Involves(usr.ID) {
		return ErrNotFound
	}
	m.Archived = true
	m.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateMessage(ctx, m)
	return err
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.CountUnread(ctx, usr.ID)
}

func (svc *service) Contacts(ctx context.Context, usr user.User) ([]Contact, error) {
	if usr.HasMerkez() {
		return svc.repo.QueryEleveContacts(ctx, usr.MerkezID.Int)
	}
	if usr.IsEleve() {
		return svc.repo.QueryMerkezContacts(ctx, usr.ID)
	}
	return []Contact{}, nil
}
