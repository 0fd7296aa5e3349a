package merkez

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Merkez types
const (
	TypeProfesseur = "professeur"
	TypeInstitut   = "institut"
)

const defaultPays = "France"

type Merkez struct {
	ID        int         `json:"id"`
	Type      string      `json:"type"`
	Nom       string      `json:"nom"`
	Email     string      `json:"email"`
	Telephone null.String `json:"telephone"`
	SiteWeb   null.String `json:"site_web"`
	Facebook  null.String `json:"facebook"`
	Instagram null.String `json:"instagram"`
	Linkedin  null.String `json:"linkedin"`
	Twitter   null.String `json:"twitter"`
	Youtube   null.String `json:"youtube"`

	Cursus               null.String `json:"cursus"`
	PresentationInstitut null.String `json:"presentation_institut"`
	Programme            null.String `json:"programme"`
	Livres               null.String `json:"livres"`
	Methodologie         null.String `json:"methodologie"`
	ImageURL             null.String `json:"image_url"`
	PresentationVideoURL null.String `json:"presentation_video_url"`

	NombreProfesseurs              int `json:"nombre_professeurs"`
	NombreSecretaires              int `json:"nombre_secretaires"`
	NombreSuperviseurs             int `json:"nombre_superviseurs"`
	NombreResponsablesPedagogiques int `json:"nombre_responsables_pedagogiques"`
	NombreGestionnaires            int `json:"nombre_gestionnaires"`

	Matieres    core.StringList `json:"matieres"`
	Formats     core.StringList `json:"formats"`
	TypeClasse  core.StringList `json:"type_classe"`
	Niveaux     core.StringList `json:"niveaux"`
	Langues     core.StringList `json:"langues"`
	PublicCible core.StringList `json:"public_cible"`

	PrixMin             decimal.NullDecimal `json:"prix_min"`
	PrixMax             decimal.NullDecimal `json:"prix_max"`
	PremierCoursGratuit bool                `json:"premier_cours_gratuit"`

	Ville   null.String `json:"ville"`
	Pays    string      `json:"pays"`
	Adresse null.String `json:"adresse"`

	NoteMoyenne float64 `json:"note_moyenne"`
	NombreAvis  int     `json:"nombre_avis"`

	Verifie         bool `json:"verifie"`
	Actif           bool `json:"actif"`
	Nouveau         bool `json:"nouveau"`
	AbonnementActif bool `json:"abonnement_actif"`

	NombreEleves      int `json:"nombre_eleves"`
	NombreCoursDonnes int `json:"nombre_cours_donnes"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (Merkez) TableName() string { return "merkez" }

func (m *Merkez) IsInstitut() bool { return m.Type == TypeInstitut }

// PrepareNew sets the defaults of a merkez about to be created.
func (m *Merkez) PrepareNew(now time.Time) {
	if m.Pays == "" {
		m.Pays = defaultPays
	}
	for _, l := range []*core.StringList{&m.Matieres, &m.Formats, &m.TypeClasse, &m.Niveaux, &m.Langues, &m.PublicCible} {
		if *l == nil {
			*l = core.StringList{}
		}
	}
	m.CreatedAt = now
	m.UpdatedAt = now
}

// Bio is the short presentation shown on the public cards.
func (m *Merkez) Bio() string {
	if m.PresentationInstitut.Valid && m.PresentationInstitut.String != "" {
		return m.PresentationInstitut.String
	}
	return m.Cursus.String
}

// Update defines the editable fields of a merkez; nil fields are left untouched.
type Update struct {
	Nom                  *string `json:"nom" validate:"omitempty,notblank,max=255"`
	Telephone            *string `json:"telephone" validate:"omitempty,max=50"`
	SiteWeb              *string `json:"site_web" validate:"omitempty,max=255"`
	Facebook             *string `json:"facebook" validate:"omitempty,max=255"`
	Instagram            *string `json:"instagram" validate:"omitempty,max=255"`
	Linkedin             *string `json:"linkedin" validate:"omitempty,max=255"`
	Twitter              *string `json:"twitter" validate:"omitempty,max=255"`
	Youtube              *string `json:"youtube" validate:"omitempty,max=255"`
	Cursus               *string `json:"cursus"`
	PresentationInstitut *string `json:"presentation_institut"`
	Programme            *string `json:"programme"`
	Livres               *string `json:"livres"`
	Methodologie         *string `json:"methodologie"`
	ImageURL             *string `json:"image_url" validate:"omitempty,max=500"`
	PresentationVideoURL *string `json:"presentation_video_url" validate:"omitempty,max=500"`

	NombreProfesseurs              *int `json:"nombre_professeurs" validate:"omitempty,min=0"`
	NombreSecretaires              *int `json:"nombre_secretaires" validate:"omitempty,min=0"`
	NombreSuperviseurs             *int `json:"nombre_superviseurs" validate:"omitempty,min=0"`
	NombreResponsablesPedagogiques *int `json:"nombre_responsables_pedagogiques" validate:"omitempty,min=0"`
	NombreGestionnaires            *int `json:"nombre_gestionnaires" validate:"omitempty,min=0"`

	Matieres    *[]string `json:"matieres"`
	Formats     *[]string `json:"formats"`
	TypeClasse  *[]string `json:"type_classe"`
	Niveaux     *[]string `json:"niveaux"`
	Langues     *[]string `json:"langues"`
	PublicCible *[]string `json:"public_cible"`

	PrixMin             *decimal.Decimal `json:"prix_min"`
	PrixMax             *decimal.Decimal `json:"prix_max"`
	PremierCoursGratuit *bool            `json:"premier_cours_gratuit"`

	Ville   *string `json:"ville" validate:"omitempty,max=100"`
	Pays    *string `json:"pays" validate:"omitempty,max=100"`
	Adresse *string `json:"adresse" validate:"omitempty,max=255"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	for _, f := range []**string{&u.Nom, &u.Telephone, &u.SiteWeb, &u.Facebook, &u.Instagram, &u.Linkedin,
		&u.Twitter, &u.Youtube, &u.ImageURL, &u.PresentationVideoURL, &u.Ville, &u.Pays, &u.Adresse} {
		*f = core.StripTagsPtr(*f)
	}
	for _, f := range []**string{&u.Cursus, &u.PresentationInstitut, &u.Programme, &u.Livres, &u.Methodologie} {
		if *f != nil {
			v := core.SanitizeRichText(**f)
			*f = &v
		}
	}
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.PrixMin != nil && u.PrixMin.IsNegative() {
		return core.NewFieldError("prix_min", "must be positive")
	}
	if u.PrixMax != nil && u.PrixMax.IsNegative() {
		return core.NewFieldError("prix_max", "must be positive")
	}
	if u.PrixMin != nil && u.PrixMax != nil && u.PrixMax.LessThan(*u.PrixMin) {
		return core.NewFieldError("prix_max", "must be greater than prix_min")
	}
	return nil
}

func setNullString(dst *null.String, v *string) {
	if v != nil {
		*dst = null.NewString(*v, *v != "")
	}
}

func setList(dst *core.StringList, v *[]string) {
	if v == nil {
		return
	}
	out := make(core.StringList, 0, len(*v))
	for _, s := range *v {
		if s = core.StripTags(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Apply copies the provided fields onto m.
func (u Update) Apply(m *Merkez) {
	if u.Nom != nil {
		m.Nom = *u.Nom
	}
	setNullString(&m.Telephone, u.Telephone)
	setNullString(&m.SiteWeb, u.SiteWeb)
	setNullString(&m.Facebook, u.Facebook)
	setNullString(&m.Instagram, u.Instagram)
	setNullString(&m.Linkedin, u.Linkedin)
	setNullString(&m.Twitter, u.Twitter)
	setNullString(&m.Youtube, u.Youtube)
	setNullString(&m.Cursus, u.Cursus)
	setNullString(&m.PresentationInstitut, u.PresentationInstitut)
	setNullString(&m.Programme, u.Programme)
	setNullString(&m.Livres, u.Livres)
	setNullString(&m.Methodologie, u.Methodologie)
	setNullString(&m.ImageURL, u.ImageURL)
	setNullString(&m.PresentationVideoURL, u.PresentationVideoURL)

	setInt(&m.NombreProfesseurs, u.NombreProfesseurs)
	setInt(&m.NombreSecretaires, u.NombreSecretaires)
	setInt(&m.NombreSuperviseurs, u.NombreSuperviseurs)
	setInt(&m.NombreResponsablesPedagogiques, u.NombreResponsablesPedagogiques)
	setInt(&m.NombreGestionnaires, u.NombreGestionnaires)

	setList(&m.Matieres, u.Matieres)
	setList(&m.Formats, u.Formats)
	setList(&m.TypeClasse, u.TypeClasse)
	setList(&m.Niveaux, u.Niveaux)
	setList(&m.Langues, u.Langues)
	setList(&m.PublicCible, u.PublicCible)

	if u.PrixMin != nil {
		m.PrixMin = decimal.NewNullDecimal(*u.PrixMin)
	}
	if u.PrixMax != nil {
		m.PrixMax = decimal.NewNullDecimal(*u.PrixMax)
	}
	if u.PremierCoursGratuit != nil {
		m.PremierCoursGratuit = *u.PremierCoursGratuit
	}

	setNullString(&m.Ville, u.Ville)
	if u.Pays != nil && *u.Pays != "" {
		m.Pays = *u.Pays
	}
	setNullString(&m.Adresse, u.Adresse)
}

// PublicFilter selects merkez on the public listing.
// Values of a single filter are OR'd, filters are AND'd.
type PublicFilter struct {
	Types    []string
	Matieres []string
	Formats  []string
	Niveaux  []string
}

func cleanValues(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (f *PublicFilter) Clean() {
	f.Types = cleanValues(f.Types)
	f.Matieres = cleanValues(f.Matieres)
	f.Formats = cleanValues(f.Formats)
	f.Niveaux = cleanValues(f.Niveaux)
}

// Match reports whether m passes the filter. An empty list on m fails any non-empty filter on it.
func (f PublicFilter) Match(m Merkez) bool {
	if !m.Actif {
		return false
	}
	if len(f.Types) > 0 && !core.StringList(f.Types).Contains(m.Type) {
		return false
	}
	if len(f.Matieres) > 0 && !m.Matieres.ContainsAny(f.Matieres) {
		return false
	}
	if len(f.Formats) > 0 && !m.Formats.ContainsAny(f.Formats) {
		return false
	}
	if len(f.Niveaux) > 0 && !m.Niveaux.ContainsAny(f.Niveaux) {
		return false
	}
	return true
}

// SortByNote orders merkez by note_moyenne desc, then by id.
func SortByNote(mks []Merkez) {
	sort.SliceStable(mks, func(i, j int) bool {
		if mks[i].NoteMoyenne != mks[j].NoteMoyenne {
			return mks[i].NoteMoyenne > mks[j].NoteMoyenne
		}
		return mks[i].ID < mks[j].ID
	})
}
