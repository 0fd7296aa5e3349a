package message

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// PreviewLength is the number of runes of the last message shown in a conversation summary.
const PreviewLength = 100

// ConversationID identifies the conversation between two users, whatever the direction.
func ConversationID(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

type Message struct {
	ID               int         `json:"id"`
	ExpediteurID     int         `json:"expediteur_id"`
	DestinataireID   int         `json:"destinataire_id"`
	ExpediteurType   string      `json:"expediteur_type"`
	DestinataireType string      `json:"destinataire_type"`
	Sujet            null.String `json:"sujet"`
	Contenu          null.String `json:"contenu"`
	FichierNom       null.String `json:"fichier_nom"`
	FichierURL       null.String `json:"fichier_url"`
	FichierType      null.String `json:"fichier_type"`
	FichierTaille    null.Int64  `json:"fichier_taille"`
	Lu               bool        `json:"lu"`
	Archived         bool        `json:"archived"`
	ConversationID   string      `json:"conversation_id"`
	CreatedAt        time.Time   `json:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at"` // UTC
}

func (Message) TableName() string { return "messages" }

// Involves reports whether userID sent or received the message.
func (m Message) Involves(userID int) bool {
	return m.ExpediteurID == userID || m.DestinataireID == userID
}

type NewMessage struct {
	DestinataireID int    `json:"destinataire_id" validate:"required,min=1"`
	Sujet          string `json:"sujet" validate:"max=255"`
	Contenu        string `json:"contenu"`
}

// Validate sanitizes the contents; content may only be empty when a file is attached.
func (nm *NewMessage) Validate(validate *validator.Validate, withFile bool) error {
	nm.Sujet = core.StripTags(nm.Sujet)
	nm.Contenu = core.StripTags(nm.Contenu)
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Contenu == "" && !withFile {
		return core.NewFieldError("contenu", "the message cannot be empty")
	}
	return nil
}

// Conversation summarizes the exchanges with another user.
type Conversation struct {
	ConversationID     string    `json:"conversation_id" db:"conversation_id"`
	AutreUserID        int       `json:"autre_user_id" db:"autre_user_id"`
	AutreUserNom       string    `json:"autre_user_nom" db:"autre_user_nom"`
	AutreUserType      string    `json:"autre_user_type" db:"autre_user_type"`
	DernierMessage     string    `json:"dernier_message" db:"dernier_message"`
	DateDernierMessage time.Time `json:"date_dernier_message" db:"date_dernier_message"`
	NonLus             int       `json:"non_lus" db:"non_lus"`
}

type Contact struct {
	ID        int         `json:"id"`
	Nom       string      `json:"nom"`
	Email     string      `json:"email"`
	UserType  string      `json:"user_type"`
	AvatarURL null.String `json:"avatar_url"`
}
