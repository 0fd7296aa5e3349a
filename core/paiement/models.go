package paiement

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Statuses
const (
	StatutImpaye   = "impaye"
	StatutPartiel  = "partiel"
	StatutPaye     = "paye"
	StatutEnRetard = "en_retard"
)

// Payment methods
const (
	MethodeEspeces = "especes"
	MethodeEnLigne = "en_ligne"
)

// CalculateStatut derives the status of a payment from its amounts and due date:
// fully paid, then partially paid, then overdue (strictly after the due day), else unpaid.
func CalculateStatut(du, paye decimal.Decimal, echeance, today core.Date) string {
	switch {
	case paye.GreaterThanOrEqual(du):
		return StatutPaye
	case paye.IsPositive():
		return StatutPartiel
	case !echeance.IsZero() && echeance.Before(today):
		return StatutEnRetard
	default:
		return StatutImpaye
	}
}

type Paiement struct {
	ID              int             `json:"id"`
	EleveID         int             `json:"eleve_id"`
	MerkezID        int             `json:"merkez_id"`
	Mois            int             `json:"mois"`
	Annee           int             `json:"annee"`
	MontantDu       decimal.Decimal `json:"montant_du"`
	MontantPaye     decimal.Decimal `json:"montant_paye"`
	Statut          string          `json:"statut"`
	DateEcheance    core.Date       `json:"date_echeance"`
	DatePaiement    core.Date       `json:"date_paiement"`
	MethodePaiement null.String     `json:"methode_paiement"`
	Notes           null.String     `json:"notes"`
	RappelEnvoye    bool            `json:"rappel_envoye"`
	DateRappel      null.Time       `json:"date_rappel"`
	Archived        bool            `json:"archived"`
	ArchivedAt      null.Time       `json:"archived_at"`
	LienPaiement    null.String     `json:"lien_paiement"`
	LienToken       null.String     `json:"-"`
	LienExpiration  null.Time       `json:"lien_expiration"`
	EmailEnvoye     bool            `json:"email_envoye"`
	DateEmail       null.Time       `json:"date_email"`
	CreatedAt       time.Time       `json:"created_at"` // UTC
	UpdatedAt       time.Time       `json:"updated_at"` // UTC
}

func (Paiement) TableName() string { return "paiements" }

// Restant is what remains to be paid, never negative.
func (p Paiement) Restant() decimal.Decimal {
	r := p.MontantDu.Sub(p.MontantPaye)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (p Paiement) IsPaid() bool { return p.Statut == StatutPaye }

// refresh recomputes the status and stamps the payment date the first time it becomes paid.
func (p *Paiement) refresh(today core.Date) {
	p.Statut = CalculateStatut(p.MontantDu, p.MontantPaye, p.DateEcheance, today)
	if p.Statut == StatutPaye && p.DatePaiement.IsZero() {
		p.DatePaiement = today
	}
}

// Detail is a paiement with the student and merkez information needed by listings and emails.
type Detail struct {
	Paiement       `gorm:"embedded"`
	EleveNom       string          `json:"eleve_nom"`
	ElevePrenom    string          `json:"eleve_prenom"`
	MontantRestant decimal.Decimal `json:"montant_restant" gorm:"-"`

	EleveEmail       string `json:"-"`
	EleveEmailParent string `json:"-"`
	MerkezNom        string `json:"-"`
	MerkezEmail      string `json:"-"`
}

// Fill computes the derived fields after loading.
func (d *Detail) Fill() {
	d.MontantRestant = d.Restant()
}

// ContactEmail is the student's email, else the parent's.
func (d Detail) ContactEmail() string {
	if d.EleveEmail != "" {
		return d.EleveEmail
	}
	return d.EleveEmailParent
}

type NewPaiement struct {
	EleveID         int              `json:"eleve_id" validate:"required,min=1"`
	Mois            int              `json:"mois" validate:"required,min=1,max=12"`
	Annee           int              `json:"annee" validate:"required,min=2000,max=2100"`
	MontantDu       decimal.Decimal  `json:"montant_du"`
	MontantPaye     *decimal.Decimal `json:"montant_paye"`
	DateEcheance    core.Date        `json:"date_echeance"`
	MethodePaiement string           `json:"methode_paiement" validate:"omitempty,max=50"`
	Notes           string           `json:"notes"`
}

func (np *NewPaiement) Validate(validate *validator.Validate) error {
	np.MethodePaiement = core.CleanString(np.MethodePaiement, true /* lower */)
	np.Notes = core.StripTags(np.Notes)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.MontantDu.IsPositive() {
		return core.NewFieldError("montant_du", "montant_du must be greater than 0")
	}
	if np.MontantPaye != nil && np.MontantPaye.IsNegative() {
		return core.NewFieldError("montant_paye", "montant_paye cannot be negative")
	}
	if np.DateEcheance.IsZero() {
		return core.NewFieldError("date_echeance", "this field is required")
	}
	return nil
}

type Update struct {
	MontantDu       *decimal.Decimal `json:"montant_du"`
	MontantPaye     *decimal.Decimal `json:"montant_paye"`
	DateEcheance    *core.Date       `json:"date_echeance"`
	DatePaiement    *core.Date       `json:"date_paiement"`
	MethodePaiement *string          `json:"methode_paiement" validate:"omitempty,max=50"`
	Notes           *string          `json:"notes"`
	Statut          *string          `json:"statut" validate:"omitempty,oneof=impaye partiel paye en_retard"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	u.Notes = core.StripTagsPtr(u.Notes)
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.MontantDu != nil && !u.MontantDu.IsPositive() {
		return core.NewFieldError("montant_du", "montant_du must be greater than 0")
	}
	if u.MontantPaye != nil && u.MontantPaye.IsNegative() {
		return core.NewFieldError("montant_paye", "montant_paye cannot be negative")
	}
	return nil
}

// Apply copies the provided fields onto p. The status is recomputed whenever an amount or the due
// date changes; otherwise an explicit statut is kept as given.
func (u Update) Apply(p *Paiement, today core.Date) {
	recompute := false
	if u.MontantDu != nil {
		p.MontantDu = *u.MontantDu
		recompute = true
	}
	if u.MontantPaye != nil {
		p.MontantPaye = *u.MontantPaye
		recompute = true
	}
	if u.DateEcheance != nil && !u.DateEcheance.IsZero() {
		p.DateEcheance = *u.DateEcheance
		recompute = true
	}
	if u.DatePaiement != nil {
		p.DatePaiement = *u.DatePaiement
	}
	if u.MethodePaiement != nil {
		m := core.CleanString(*u.MethodePaiement, true /* lower */)
		p.MethodePaiement = null.NewString(m, m != "")
	}
	if u.Notes != nil {
		p.Notes = null.NewString(*u.Notes, *u.Notes != "")
	}
	if u.Statut != nil && !recompute {
		p.Statut = *u.Statut
		if p.Statut == StatutPaye && p.DatePaiement.IsZero() {
			p.DatePaiement = today
		}
	}
	if recompute {
		p.refresh(today)
	}
}

// PartialPayment is read from the JSON body or the query string.
type PartialPayment struct {
	Montant         decimal.Decimal `json:"montant" query:"-"`
	MethodePaiement string          `json:"methode_paiement" query:"methode_paiement" validate:"omitempty,max=50"`
	Notes           string          `json:"notes" query:"notes"`
}

func (pp *PartialPayment) Validate(validate *validator.Validate) error {
	pp.MethodePaiement = core.CleanString(pp.MethodePaiement, true /* lower */)
	pp.Notes = core.StripTags(pp.Notes)
	return validate.Struct(pp)
}

type QueryFilter struct {
	EleveID         int
	Statut          string
	Mois            int
	Annee           int
	IncludeArchived bool
}

// MonthRequest is read from the JSON body or the query string.
type MonthRequest struct {
	Mois  int `json:"mois" query:"mois" validate:"required,min=1,max=12"`
	Annee int `json:"annee" query:"annee" validate:"required,min=2000,max=2100"`
}

func (mr MonthRequest) Validate(validate *validator.Validate) error { return validate.Struct(mr) }

type ArchivedMonth struct {
	Mois      int             `json:"mois" db:"mois"`
	Annee     int             `json:"annee" db:"annee"`
	Count     int             `json:"count" db:"count"`
	TotalDu   decimal.Decimal `json:"total_du" db:"total_du"`
	TotalPaye decimal.Decimal `json:"total_paye" db:"total_paye"`
}

type Stats struct {
	TotalDu       decimal.Decimal `json:"total_du" db:"total_du"`
	TotalPaye     decimal.Decimal `json:"total_paye" db:"total_paye"`
	TotalRestant  decimal.Decimal `json:"total_restant" db:"-"`
	EnRetardCount int             `json:"en_retard_count" db:"en_retard_count"`
	ImpayeCount   int             `json:"impaye_count" db:"impaye_count"`
}

type LinkResult struct {
	Success        bool      `json:"success"`
	LienPaiement   string    `json:"lien_paiement"`
	LienExpiration time.Time `json:"lien_expiration"`
}

// Public is what the payer sees behind a payment link.
type Public struct {
	ID             int             `json:"id"`
	Mois           int             `json:"mois"`
	Annee          int             `json:"annee"`
	MontantDu      decimal.Decimal `json:"montant_du"`
	MontantPaye    decimal.Decimal `json:"montant_paye"`
	MontantRestant decimal.Decimal `json:"montant_restant"`
	Statut         string          `json:"statut"`
	DateEcheance   core.Date       `json:"date_echeance"`
	EleveNom       string          `json:"eleve_nom"`
	ElevePrenom    string          `json:"eleve_prenom"`
	MerkezNom      string          `json:"merkez_nom"`
}

func (d Detail) Public() Public {
	return Public{
		ID:             d.ID,
		Mois:           d.Mois,
		Annee:          d.Annee,
		MontantDu:      d.MontantDu,
		MontantPaye:    d.MontantPaye,
		MontantRestant: d.Restant(),
		Statut:         d.Statut,
		DateEcheance:   d.DateEcheance,
		EleveNom:       d.EleveNom,
		ElevePrenom:    d.ElevePrenom,
		MerkezNom:      d.MerkezNom,
	}
}

type Confirmation struct {
	MethodePaiement string `json:"methode_paiement" validate:"omitempty,max=50"`
}
