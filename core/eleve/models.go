package eleve

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Eleve statuses
const (
	StatutActif   = "actif"
	StatutInactif = "inactif"
	StatutArchive = "archive"
)

var avatars = map[string]string{
	"homme":  "/avatars/homme.webp",
	"femme":  "/avatars/femme.webp",
	"garcon": "/avatars/garcon.webp",
	"fille":  "/avatars/fille.webp",
}

// AvatarForGenre maps a genre to its default avatar, case-insensitively. Unknown genres have none.
func AvatarForGenre(genre string) string {
	return avatars[strings.ToLower(strings.TrimSpace(genre))]
}

func avatarNullString(genre string) null.String {
	a := AvatarForGenre(genre)
	return null.NewString(a, a != "")
}

type Eleve struct {
	ID                 int             `json:"id"`
	MerkezID           int             `json:"merkez_id"`
	UserID             null.Int        `json:"user_id"`
	Nom                string          `json:"nom"`
	Prenom             string          `json:"prenom"`
	Email              null.String     `json:"email"`
	Telephone          null.String     `json:"telephone"`
	DateNaissance      core.Date       `json:"date_naissance"`
	Genre              null.String     `json:"genre"`
	AvatarURL          null.String     `json:"avatar_url"`
	NomParent          null.String     `json:"nom_parent"`
	TelephoneParent    null.String     `json:"telephone_parent"`
	EmailParent        null.String     `json:"email_parent"`
	Niveau             null.String     `json:"niveau"`
	Matieres           core.StringList `json:"matieres"`
	Objectifs          null.String     `json:"objectifs"`
	TypeCours          null.String     `json:"type_cours"`
	FrequenceCours     null.String     `json:"frequence_cours"`
	DureeCours         null.Int        `json:"duree_cours"`
	TarifHeure         decimal.Decimal `json:"tarif_heure"`
	Statut             string          `json:"statut"`
	NombreCoursSuivis  int             `json:"nombre_cours_suivis"`
	NombreAbsences     int             `json:"nombre_absences"`
	Notes              null.String     `json:"notes"`
	CommentaireGeneral null.String     `json:"commentaire_general"`
	DateInscription    core.Date       `json:"date_inscription"`
	DateDernierCours   core.Date       `json:"date_dernier_cours"`
	CreatedAt          time.Time       `json:"created_at"` // UTC
	UpdatedAt          time.Time       `json:"updated_at"` // UTC
}

func (Eleve) TableName() string { return "eleves" }

// FullName is "Prenom Nom".
func (e Eleve) FullName() string {
	return strings.TrimSpace(e.Prenom + " " + e.Nom)
}

// ContactEmail is the address used for payment emails: the eleve's own, else the parent's.
func (e Eleve) ContactEmail() string {
	if e.Email.String != "" {
		return e.Email.String
	}
	return e.EmailParent.String
}

// NewEleve contains the information needed to add a student to a merkez.
type NewEleve struct {
	Nom                string          `json:"nom" validate:"required,notblank,max=100"`
	Prenom             string          `json:"prenom" validate:"required,notblank,max=100"`
	Email              string          `json:"email" validate:"omitempty,email,max=255"`
	Telephone          string          `json:"telephone" validate:"omitempty,max=50"`
	DateNaissance      core.Date       `json:"date_naissance"`
	Genre              string          `json:"genre" validate:"omitempty,max=20"`
	NomParent          string          `json:"nom_parent" validate:"omitempty,max=200"`
	TelephoneParent    string          `json:"telephone_parent" validate:"omitempty,max=50"`
	EmailParent        string          `json:"email_parent" validate:"omitempty,email,max=255"`
	Niveau             string          `json:"niveau" validate:"omitempty,max=50"`
	Matieres           []string        `json:"matieres"`
	Objectifs          string          `json:"objectifs"`
	TypeCours          string          `json:"type_cours" validate:"omitempty,max=50"`
	FrequenceCours     string          `json:"frequence_cours" validate:"omitempty,max=50"`
	DureeCours         *int            `json:"duree_cours" validate:"omitempty,min=0"`
	TarifHeure         decimal.Decimal `json:"tarif_heure"`
	Statut             string          `json:"statut" validate:"omitempty,oneof=actif inactif archive"`
	Notes              string          `json:"notes"`
	CommentaireGeneral string          `json:"commentaire_general"`
}

func (ne *NewEleve) Validate(validate *validator.Validate) error {
	ne.Nom = core.StripTags(ne.Nom)
	ne.Prenom = core.StripTags(ne.Prenom)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.EmailParent = core.CleanString(ne.EmailParent, true /* lower */)
	ne.Telephone = core.StripTags(ne.Telephone)
	ne.TelephoneParent = core.StripTags(ne.TelephoneParent)
	ne.Genre = core.CleanString(ne.Genre, true /* lower */)
	ne.NomParent = core.StripTags(ne.NomParent)
	ne.Objectifs = core.StripTags(ne.Objectifs)
	ne.Notes = core.StripTags(ne.Notes)
	ne.CommentaireGeneral = core.StripTags(ne.CommentaireGeneral)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.TarifHeure.IsNegative() {
		return core.NewFieldError("tarif_heure", "must be positive")
	}
	return nil
}

func nullStr(s string) null.String { return null.NewString(s, s != "") }

// ToEleve builds the record to insert; ids and counters are set by the service.
func (ne NewEleve) ToEleve(merkezID int, now time.Time) Eleve {
	statut := ne.Statut
	if statut == "" {
		statut = StatutActif
	}
	matieres := make(core.StringList, 0, len(ne.Matieres))
	for _, m := range ne.Matieres {
		if m = core.StripTags(m); m != "" {
			matieres = append(matieres, m)
		}
	}
	e := Eleve{
		MerkezID:           merkezID,
		Nom:                ne.Nom,
		Prenom:             ne.Prenom,
		Email:              nullStr(ne.Email),
		Telephone:          nullStr(ne.Telephone),
		DateNaissance:      ne.DateNaissance,
		Genre:              nullStr(ne.Genre),
		AvatarURL:          avatarNullString(ne.Genre),
		NomParent:          nullStr(ne.NomParent),
		TelephoneParent:    nullStr(ne.TelephoneParent),
		EmailParent:        nullStr(ne.EmailParent),
		Niveau:             nullStr(ne.Niveau),
		Matieres:           matieres,
		Objectifs:          nullStr(ne.Objectifs),
		TypeCours:          nullStr(ne.TypeCours),
		FrequenceCours:     nullStr(ne.FrequenceCours),
		TarifHeure:         ne.TarifHeure,
		Statut:             statut,
		Notes:              nullStr(ne.Notes),
		CommentaireGeneral: nullStr(ne.CommentaireGeneral),
		DateInscription:    core.DateOf(now),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if ne.DureeCours != nil {
		e.DureeCours = null.IntFrom(*ne.DureeCours)
	}
	return e
}

// Update defines the editable fields of an eleve; nil fields are left untouched.
type Update struct {
	Nom                *string          `json:"nom" validate:"omitempty,notblank,max=100"`
	Prenom             *string          `json:"prenom" validate:"omitempty,notblank,max=100"`
	Email              *string          `json:"email" validate:"omitempty,email,max=255"`
	Telephone          *string          `json:"telephone" validate:"omitempty,max=50"`
	DateNaissance      *core.Date       `json:"date_naissance"`
	Genre              *string          `json:"genre" validate:"omitempty,max=20"`
	NomParent          *string          `json:"nom_parent" validate:"omitempty,max=200"`
	TelephoneParent    *string          `json:"telephone_parent" validate:"omitempty,max=50"`
	EmailParent        *string          `json:"email_parent" validate:"omitempty,email,max=255"`
	Niveau             *string          `json:"niveau" validate:"omitempty,max=50"`
	Matieres           *[]string        `json:"matieres"`
	Objectifs          *string          `json:"objectifs"`
	TypeCours          *string          `json:"type_cours" validate:"omitempty,max=50"`
	FrequenceCours     *string          `json:"frequence_cours" validate:"omitempty,max=50"`
	DureeCours         *int             `json:"duree_cours" validate:"omitempty,min=0"`
	TarifHeure         *decimal.Decimal `json:"tarif_heure"`
	Statut             *string          `json:"statut" validate:"omitempty,oneof=actif inactif archive"`
	NombreCoursSuivis  *int             `json:"nombre_cours_suivis" validate:"omitempty,min=0"`
	NombreAbsences     *int             `json:"nombre_absences" validate:"omitempty,min=0"`
	Notes              *string          `json:"notes"`
	CommentaireGeneral *string          `json:"commentaire_general"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	for _, f := range []**string{&u.Nom, &u.Prenom, &u.Telephone, &u.NomParent, &u.TelephoneParent,
		&u.Niveau, &u.Objectifs, &u.TypeCours, &u.FrequenceCours, &u.Notes, &u.CommentaireGeneral} {
		*f = core.StripTagsPtr(*f)
	}
	for _, f := range []**string{&u.Email, &u.EmailParent, &u.Genre} {
		if *f != nil {
			v := core.CleanString(**f, true /* lower */)
			*f = &v
		}
	}
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.TarifHeure != nil && u.TarifHeure.IsNegative() {
		return core.NewFieldError("tarif_heure", "must be positive")
	}
	return nil
}

func setNullString(dst *null.String, v *string) {
	if v != nil {
		*dst = nullStr(*v)
	}
}

// Apply copies the provided fields onto e. A changed genre re-assigns the default avatar.
func (u Update) Apply(e *Eleve) {
	if u.Nom != nil {
		e.Nom = *u.Nom
	}
	if u.Prenom != nil {
		e.Prenom = *u.Prenom
	}
	setNullString(&e.Email, u.Email)
	setNullString(&e.Telephone, u.Telephone)
	if u.DateNaissance != nil {
		e.DateNaissance = *u.DateNaissance
	}
	if u.Genre != nil && *u.Genre != e.Genre.String {
		e.Genre = nullStr(*u.Genre)
		e.AvatarURL = avatarNullString(*u.Genre)
	}
	setNullString(&e.NomParent, u.NomParent)
	setNullString(&e.TelephoneParent, u.TelephoneParent)
	setNullString(&e.EmailParent, u.EmailParent)
	setNullString(&e.Niveau, u.Niveau)
	if u.Matieres != nil {
		matieres := make(core.StringList, 0, len(*u.Matieres))
		for _, m := range *u.Matieres {
			if m = core.StripTags(m); m != "" {
				matieres = append(matieres, m)
			}
		}
		e.Matieres = matieres
	}
	setNullString(&e.Objectifs, u.Objectifs)
	setNullString(&e.TypeCours, u.TypeCours)
	setNullString(&e.FrequenceCours, u.FrequenceCours)
	if u.DureeCours != nil {
		e.DureeCours = null.IntFrom(*u.DureeCours)
	}
	if u.TarifHeure != nil {
		e.TarifHeure = *u.TarifHeure
	}
	if u.Statut != nil {
		e.Statut = *u.Statut
	}
	if u.NombreCoursSuivis != nil {
		e.NombreCoursSuivis = *u.NombreCoursSuivis
	}
	if u.NombreAbsences != nil {
		e.NombreAbsences = *u.NombreAbsences
	}
	setNullString(&e.Notes, u.Notes)
	setNullString(&e.CommentaireGeneral, u.CommentaireGeneral)
}

type QueryFilter struct {
	Statut string
	Search string
}

func (qf *QueryFilter) Clean() {
	qf.Statut = core.CleanString(qf.Statut, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// CreateResult is what a merkez gets back when adding a student.
type CreateResult struct {
	Eleve        Eleve  `json:"eleve"`
	UserCreated  bool   `json:"user_created"`
	Email        string `json:"email,omitempty"`
	TempPassword string `json:"temp_password,omitempty"`
	Message      string `json:"message"`
}

// CredentialsEmail is sent to a student whose account was just created.
type CredentialsEmail struct {
	Email            string `json:"email" validate:"required,email"`
	StudentFirstname string `json:"student_firstname" validate:"required"`
	StudentLastname  string `json:"student_lastname" validate:"required"`
	TempPassword     string `json:"temp_password" validate:"required"`
}

func (ce *CredentialsEmail) Validate(validate *validator.Validate) error {
	ce.Email = core.CleanString(ce.Email, true /* lower */)
	ce.StudentFirstname = core.StripTags(ce.StudentFirstname)
	ce.StudentLastname = core.StripTags(ce.StudentLastname)
	return validate.Struct(ce)
}
