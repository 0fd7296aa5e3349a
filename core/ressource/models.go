package ressource

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Categories
const (
	CategorieVideo    = "video"
	CategorieAudio    = "audio"
	CategorieImage    = "image"
	CategorieDocument = "document"
)

// Access types
const (
	AccesPrive      = "prive"
	AccesPublic     = "public"
	AccesEleves     = "eleves"
	AccesSpecifique = "specifique"
)

// AllowedTypes lists the MIME types accepted in the library.
var AllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"image/jpeg", "image/png", "image/webp", "image/gif",
	"audio/mpeg", "audio/wav", "audio/ogg",
	"video/mp4", "video/webm", "video/ogg", "video/quicktime",
}

// CategorieOf maps a MIME type to a library category.
func CategorieOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return CategorieVideo
	case strings.HasPrefix(contentType, "audio/"):
		return CategorieAudio
	case strings.HasPrefix(contentType, "image/"):
		return CategorieImage
	default:
		return CategorieDocument
	}
}

// StoredName timestamps the uploaded file name: "cours 1.pdf" becomes "cours 1_20240902_101500.pdf".
func StoredName(filename string, t time.Time) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "_" + t.Format("20060102_150405") + ext
}

type Ressource struct {
	ID              int             `json:"id"`
	MerkezID        int             `json:"merkez_id"`
	Titre           string          `json:"titre"`
	Description     null.String     `json:"description"`
	FichierNom      string          `json:"fichier_nom"`
	FichierURL      string          `json:"fichier_url"`
	FichierType     string          `json:"fichier_type"`
	FichierTaille   int64           `json:"fichier_taille"`
	Categorie       string          `json:"categorie"`
	AccesType       string          `json:"acces_type"`
	ElevesAutorises core.IntList    `json:"eleves_autorises"`
	Tags            core.StringList `json:"tags"`
	Dossier         null.String     `json:"dossier"`
	Vues            int             `json:"vues"`
	Telecharges     int             `json:"telecharges"`
	CreatedAt       time.Time       `json:"created_at"` // UTC
	UpdatedAt       time.Time       `json:"updated_at"` // UTC
}

func (Ressource) TableName() string { return "ressources_bibliotheque" }

// VisibleTo reports whether a student of the owning merkez may see the ressource.
func (r Ressource) VisibleTo(eleveID int) bool {
	switch r.AccesType {
	case AccesPublic, AccesEleves:
		return true
	case AccesSpecifique:
		return r.ElevesAutorises.Contains(eleveID)
	default:
		return false
	}
}

// SplitList splits a comma separated form value, dropping blanks.
func SplitList(s string) []string {
	out := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = core.StripTags(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ParseIDs parses a comma separated list of ids.
func ParseIDs(s string) ([]int, error) {
	ids := []int{}
	for _, v := range SplitList(s) {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return nil, core.NewFieldError("eleves_autorises", "invalid eleve id: "+v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type NewRessource struct {
	Titre           string   `json:"titre" validate:"required,max=255"`
	Description     string   `json:"description"`
	AccesType       string   `json:"acces_type" validate:"oneof=prive public eleves specifique"`
	ElevesAutorises []int    `json:"eleves_autorises"`
	Tags            []string `json:"tags" validate:"dive,max=50"`
	Dossier         string   `json:"dossier" validate:"max=255"`
}

func (nr *NewRessource) Validate(validate *validator.Validate) error {
	nr.Titre = core.StripTags(nr.Titre)
	nr.Description = core.StripTags(nr.Description)
	nr.Dossier = core.StripTags(nr.Dossier)
	if nr.AccesType = core.CleanString(nr.AccesType, true /* lower */); nr.AccesType == "" {
		nr.AccesType = AccesPrive
	}
	return validate.Struct(nr)
}

type Update struct {
	Titre           *string   `json:"titre" validate:"omitempty,notblank,max=255"`
	Description     *string   `json:"description"`
	AccesType       *string   `json:"acces_type" validate:"omitempty,oneof=prive public eleves specifique"`
	ElevesAutorises *[]int    `json:"eleves_autorises"`
	Tags            *[]string `json:"tags" validate:"omitempty,dive,max=50"`
	Dossier         *string   `json:"dossier" validate:"omitempty,max=255"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	u.Titre = core.StripTagsPtr(u.Titre)
	u.Description = core.StripTagsPtr(u.Description)
	u.Dossier = core.StripTagsPtr(u.Dossier)
	if u.Titre != nil && *u.Titre == "" {
		return core.NewFieldError("titre", "this field cannot be blank")
	}
	return validate.Struct(u)
}

func (u Update) Apply(r *Ressource) {
	if u.Titre != nil {
		r.Titre = *u.Titre
	}
	if u.Description != nil {
		r.Description = null.NewString(*u.Description, *u.Description != "")
	}
	if u.AccesType != nil {
		r.AccesType = *u.AccesType
	}
	if u.ElevesAutorises != nil {
		r.ElevesAutorises = append(core.IntList{}, *u.ElevesAutorises...)
	}
	if u.Tags != nil {
		r.Tags = append(core.StringList{}, *u.Tags...)
	}
	if u.Dossier != nil {
		r.Dossier = null.NewString(*u.Dossier, *u.Dossier != "")
	}
}

type QueryFilter struct {
	Categorie string
	Dossier   string
}

type Folder struct {
	Nom string `json:"nom" db:"nom"`
}
