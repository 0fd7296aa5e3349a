package note

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Fichier is a file attached to a note.
type Fichier struct {
	Nom  string `json:"nom"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Fichiers is persisted as a JSON array.
type Fichiers []Fichier

func (f Fichiers) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Fichier(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *Fichiers) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*f = Fichiers{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Errorf("Fichiers: unsupported type %T", src)
	}
	if len(data) == 0 {
		*f = Fichiers{}
		return nil
	}
	var out []Fichier
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.Wrap(err, "Fichiers: decoding")
	}
	*f = out
	return nil
}

func (f Fichiers) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Fichier(f))
}

type Note struct {
	ID                     int         `json:"id"`
	CoursID                int         `json:"cours_id"`
	EleveID                int         `json:"eleve_id"`
	MerkezID               int         `json:"merkez_id"`
	Resume                 null.String `json:"resume"`
	VuEnCours              null.String `json:"vu_en_cours"`
	Devoirs                null.String `json:"devoirs"`
	ARevoir                null.String `json:"a_revoir" gorm:"column:a_revoir"`
	AVoirProchaineFois     null.String `json:"a_voir_prochaine_fois" gorm:"column:a_voir_prochaine_fois"`
	CommentaireProf        null.String `json:"commentaire_prof"`
	Fichiers               Fichiers    `json:"fichiers"`
	ProgressionPourcentage null.Int    `json:"progression_pourcentage"`
	Note                   null.String `json:"note"`
	CreatedAt              time.Time   `json:"created_at"` // UTC
	UpdatedAt              time.Time   `json:"updated_at"` // UTC
}

func (Note) TableName() string { return "notes_cours" }

type Contents struct {
	Resume                 *string `json:"resume"`
	VuEnCours              *string `json:"vu_en_cours"`
	Devoirs                *string `json:"devoirs"`
	ARevoir                *string `json:"a_revoir"`
	AVoirProchaineFois     *string `json:"a_voir_prochaine_fois"`
	CommentaireProf        *string `json:"commentaire_prof"`
	ProgressionPourcentage *int    `json:"progression_pourcentage" validate:"omitempty,min=0,max=100"`
	Note                   *string `json:"note" validate:"omitempty,max=50"`
}

func (c *Contents) sanitize() {
	c.Resume = core.StripTagsPtr(c.Resume)
	c.VuEnCours = core.StripTagsPtr(c.VuEnCours)
	c.Devoirs = core.StripTagsPtr(c.Devoirs)
	c.ARevoir = core.StripTagsPtr(c.ARevoir)
	c.AVoirProchaineFois = core.StripTagsPtr(c.AVoirProchaineFois)
	c.CommentaireProf = core.StripTagsPtr(c.CommentaireProf)
	c.Note = core.StripTagsPtr(c.Note)
}

func (c *Contents) Validate(validate *validator.Validate) error {
	c.sanitize()
	return validate.Struct(c)
}

func setString(dst *null.String, v *string) {
	if v != nil {
		*dst = null.NewString(*v, *v != "")
	}
}

// Apply copies the provided fields onto n.
func (c Contents) Apply(n *Note) {
	setString(&n.Resume, c.Resume)
	setString(&n.VuEnCours, c.VuEnCours)
	setString(&n.Devoirs, c.Devoirs)
	setString(&n.ARevoir, c.ARevoir)
	setString(&n.AVoirProchaineFois, c.AVoirProchaineFois)
	setString(&n.CommentaireProf, c.CommentaireProf)
	setString(&n.Note, c.Note)
	if c.ProgressionPourcentage != nil {
		n.ProgressionPourcentage = null.IntFrom(*c.ProgressionPourcentage)
	}
}

type NewNote struct {
	CoursID int  `json:"cours_id" validate:"required,min=1"`
	EleveID *int `json:"eleve_id"`
	Contents
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.sanitize()
	return validate.Struct(nn)
}
