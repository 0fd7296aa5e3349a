package paiement

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
)

// ReminderInterval is the minimum delay between two reminders for the same paiement.
const ReminderInterval = 7 * 24 * time.Hour

var (
	ErrNotFound     = fmt.Errorf("paiement %w", core.ErrNotFound)
	ErrMonthEmpty   = fmt.Errorf("no paiement for this month: %w", core.ErrNotFound)
	ErrLinkNotFound = fmt.Errorf("payment link %w", core.ErrNotFound)
	ErrLinkExpired  = errors.Wrap(core.ErrGone, "payment link expired")

	errDuplicate      = errors.New("a paiement already exists for this eleve and month")
	errAlreadyPaid    = errors.New("this paiement is already paid")
	errNoEmail        = errors.New("neither the eleve nor the parent has an email")
	errInvalidPartial = errors.New("montant must be greater than 0 and at most the remaining amount")

	// NowFunc returns the current time; overridden in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		QueryPaiements(ctx context.Context, merkezID int, filter QueryFilter) ([]Detail, error)
		GetPaiement(ctx context.Context, id int) (Paiement, error)
		GetDetail(ctx context.Context, id int) (Detail, error)
		GetDetailByToken(ctx context.Context, token string) (Detail, error)
		ExistsForMonth(ctx context.Context, eleveID, mois, annee int) (bool, error)
		CreatePaiement(ctx context.Context, p Paiement) (Paiement, error)
		UpdatePaiement(ctx context.Context, p Paiement) (Paiement, error)
		DeletePaiement(ctx context.Context, id int) error
		// SetArchived flips the archive flag of every paiement of the month in the opposite state
		// and returns how many rows changed.
		SetArchived(ctx context.Context, merkezID, mois, annee int, archived bool, at time.Time) (int, error)
	}

	// ReportRepository holds the aggregate queries. A merkezID of 0 spans every merkez.
	ReportRepository interface {
		RefreshOverdue(ctx context.Context, merkezID int, today core.Date) (int, error)
		Stats(ctx context.Context, merkezID int) (Stats, error)
		ArchivedMonths(ctx context.Context, merkezID int) ([]ArchivedMonth, error)
		ReminderCandidates(ctx context.Context, merkezID int, today core.Date, remindedBefore time.Time) ([]Detail, error)
	}

	Service interface {
		RefreshOverdue(ctx context.Context, merkezID int) error
		Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Detail, error)
		QueryByEleve(ctx context.Context, merkezID, eleveID int) ([]Detail, error)
		Create(ctx context.Context, merkezID int, np NewPaiement) (Paiement, error)
		Update(ctx context.Context, merkezID, id int, upd Update) (Paiement, error)
		MarkPaid(ctx context.Context, merkezID, id int, methode string) (Paiement, error)
		AddPartial(ctx context.Context, merkezID, id int, pp PartialPayment) (Paiement, error)
		Delete(ctx context.Context, merkezID, id int) error

		ArchiveMonth(ctx context.Context, merkezID int, mr MonthRequest) (int, error)
		UnarchiveMonth(ctx context.Context, merkezID int, mr MonthRequest) (int, error)
		ArchivedMonths(ctx context.Context, merkezID int) ([]ArchivedMonth, error)
		Stats(ctx context.Context, merkezID int) (Stats, error)

		SendLink(ctx context.Context, merkezID, id int) (LinkResult, error)
		GetPublic(ctx context.Context, token string) (Public, error)
		Confirm(ctx context.Context, token string, conf Confirmation) (Public, error)

		// SendReminders emails overdue payers of merkezID (0 for all) and returns how many were sent.
		SendReminders(ctx context.Context, merkezID int) (int, error)
	}

	service struct {
		repo     Repository
		reports  ReportRepository
		eleveSvc eleve.Service
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	reports ReportRepository,
	eleveSvc eleve.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		repo:     repo,
		reports:  reports,
		eleveSvc: eleveSvc,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func now() time.Time { return NowFunc().UTC() }

func today() core.Date { return core.DateOf(now()) }

func (svc *service) RefreshOverdue(ctx context.Context, merkezID int) error {
	if _, err := svc.reports.RefreshOverdue(ctx, merkezID, today()); err != nil {
		return errors.Wrap(err, "refreshing overdue paiements")
	}
	return nil
}

func (svc *service) Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Detail, error) {
	if err := svc.RefreshOverdue(ctx, merkezID); err != nil {
		return nil, err
	}
	filter.Statut = core.CleanString(filter.Statut, true /* lower */)
	return svc.repo.QueryPaiements(ctx, merkezID, filter)
}

func (svc *service) QueryByEleve(ctx context.Context, merkezID, eleveID int) ([]Detail, error) {
	if _, err := svc.eleveSvc.Get(ctx, merkezID, eleveID); err != nil {
		return nil, err
	}
	return svc.Query(ctx, merkezID, QueryFilter{EleveID: eleveID, IncludeArchived: true})
}

// get loads a paiement of the merkez; paiements of other merkez are reported as not found.
func (svc *service) get(ctx context.Context, merkezID, id int) (Paiement, error) {
	p, err := svc.repo.GetPaiement(ctx, id)
	if err != nil {
		return Paiement{}, err
	}
	if p.MerkezID != merkezID {
		return Paiement{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) Create(ctx context.Context, merkezID int, np NewPaiement) (Paiement, error) {
	if _, err := svc.eleveSvc.Get(ctx, merkezID, np.EleveID); err != nil {
		return Paiement{}, err
	}

	exists, err := svc.repo.ExistsForMonth(ctx, np.EleveID, np.Mois, np.Annee)
	if err != nil {
		return Paiement{}, errors.Wrap(err, "checking existing paiement")
	}
	if exists {
		return Paiement{}, core.NewValidationError(errDuplicate)
	}

	t := now()
	p := Paiement{
		EleveID:         np.EleveID,
		MerkezID:        merkezID,
		Mois:            np.Mois,
		Annee:           np.Annee,
		MontantDu:       np.MontantDu,
		MontantPaye:     decimal.Zero,
		DateEcheance:    np.DateEcheance,
		MethodePaiement: null.NewString(np.MethodePaiement, np.MethodePaiement != ""),
		Notes:           null.NewString(np.Notes, np.Notes != ""),
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	if np.MontantPaye != nil {
		p.MontantPaye = *np.MontantPaye
	}
	p.refresh(core.DateOf(t))

	if p, err = svc.repo.CreatePaiement(ctx, p); err != nil {
		return Paiement{}, errors.Wrap(err, "creating paiement")
	}
	return p, nil
}

func (svc *service) save(ctx context.Context, p Paiement) (Paiement, error) {
	p.UpdatedAt = now()
	p, err := svc.repo.UpdatePaiement(ctx, p)
	if err != nil {
		return Paiement{}, errors.Wrap(err, "updating paiement")
	}
	return p, nil
}

func (svc *service) Update(ctx context.Context, merkezID, id int, upd Update) (Paiement, error) {
	p, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return Paiement{}, err
	}
	upd.Apply(&p, today())
	return svc.save(ctx, p)
}

// pay marks p fully paid today.
func pay(p *Paiement, methode string, day core.Date) {
	p.MontantPaye = p.MontantDu
	p.Statut = StatutPaye
	p.DatePaiement = day
	p.MethodePaiement = null.StringFrom(methode)
}

func (svc *service) MarkPaid(ctx context.Context, merkezID, id int, methode string) (Paiement, error) {
	p, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return Paiement{}, err
	}
	if methode = core.CleanString(methode, true /* lower */); methode == "" {
		methode = MethodeEspeces
	}
	pay(&p, methode, today())
	return svc.save(ctx, p)
}

func (svc *service) AddPartial(ctx context.Context, merkezID, id int, pp PartialPayment) (Paiement, error) {
	p, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return Paiement{}, err
	}
	if !pp.Montant.IsPositive() || pp.Montant.GreaterThan(p.Restant()) {
		return Paiement{}, core.NewFieldError("montant", errInvalidPartial.Error())
	}

	p.MontantPaye = p.MontantPaye.Add(pp.Montant)
	if pp.MethodePaiement != "" {
		p.MethodePaiement = null.StringFrom(pp.MethodePaiement)
	}
	if pp.Notes != "" {
		p.Notes = null.StringFrom(pp.Notes)
	}
	p.refresh(today())
	return svc.save(ctx, p)
}

func (svc *service) Delete(ctx context.Context, merkezID, id int) error {
	if _, err := svc.get(ctx, merkezID, id); err != nil {
		return err
	}
	return svc.repo.DeletePaiement(ctx, id)
}

func (svc *service) setArchived(ctx context.Context, merkezID int, mr MonthRequest, archived bool) (int, error) {
	n, err := svc.repo.SetArchived(ctx, merkezID, mr.Mois, mr.Annee, archived, now())
	if err != nil {
		return 0, errors.Wrap(err, "archiving month")
	}
	if n == 0 {
		return 0, ErrMonthEmpty
	}
	return n, nil
}

func (svc *service) ArchiveMonth(ctx context.Context, merkezID int, mr MonthRequest) (int, error) {
	return svc.setArchived(ctx, merkezID, mr, true)
}

func (svc *service) UnarchiveMonth(ctx context.Context, merkezID int, mr MonthRequest) (int, error) {
	return svc.setArchived(ctx, merkezID, mr, false)
}

func (svc *service) ArchivedMonths(ctx context.Context, merkezID int) ([]ArchivedMonth, error) {
	months, err := svc.reports.ArchivedMonths(ctx, merkezID)
	if err != nil {
		return nil, errors.Wrap(err, "querying archived months")
	}
	return months, nil
}

func (svc *service) Stats(ctx context.Context, merkezID int) (Stats, error) {
	if err := svc.RefreshOverdue(ctx, merkezID); err != nil {
		return Stats{}, err
	}
	st, err := svc.reports.Stats(ctx, merkezID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "computing paiement stats")
	}
	st.TotalRestant = st.TotalDu.Sub(st.TotalPaye)
	return st, nil
}

func (svc *service) SendLink(ctx context.Context, merkezID, id int) (LinkResult, error) {
	d, err := svc.repo.GetDetail(ctx, id)
	if err != nil {
		return LinkResult{}, err
	}
	if d.MerkezID != merkezID {
		return LinkResult{}, ErrNotFound
	}
	if d.IsPaid() {
		return LinkResult{}, core.NewValidationError(errAlreadyPaid)
	}
	to := d.ContactEmail()
	if to == "" {
		return LinkResult{}, core.NewValidationError(errNoEmail)
	}

	t := now()
	token := uuid.New().String()
	link := svc.conf.FrontendBaseURL + "/paiement/" + token
	p := d.Paiement
	p.LienToken = null.StringFrom(token)
	p.LienPaiement = null.StringFrom(link)
	p.LienExpiration = null.TimeFrom(t.Add(svc.conf.Payments.LinkTTL))
	p.EmailEnvoye = true
	p.DateEmail = null.TimeFrom(t)
	if p, err = svc.save(ctx, p); err != nil {
		return LinkResult{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: d.ElevePrenom + " " + d.EleveNom, Address: to}},
		Subject:      fmt.Sprintf("Paiement %02d/%d - %s", d.Mois, d.Annee, d.MerkezNom),
		TemplateName: "paiement_link",
		TemplateData: map[string]interface{}{
			"Name":       d.ElevePrenom + " " + d.EleveNom,
			"MerkezNom":  d.MerkezNom,
			"Mois":       fmt.Sprintf("%02d/%d", d.Mois, d.Annee),
			"Montant":    d.Restant().StringFixed(2),
			"URL":        link,
			"Expiration": p.LienExpiration.Time.Format("02/01/2006"),
		},
	})

	return LinkResult{
		Success:        true,
		LienPaiement:   link,
		LienExpiration: p.LienExpiration.Time,
	}, nil
}

func (svc *service) byToken(ctx context.Context, token string) (Detail, error) {
	if _, err := uuid.Parse(token); err != nil {
		return Detail{}, ErrLinkNotFound
	}
	d, err := svc.repo.GetDetailByToken(ctx, token)
	if err != nil {
		if core.IsNotFound(err) {
			return Detail{}, ErrLinkNotFound
		}
		return Detail{}, err
	}
	if d.LienExpiration.Valid && d.LienExpiration.Time.Before(now()) {
		return Detail{}, ErrLinkExpired
	}
	return d, nil
}

func (svc *service) GetPublic(ctx context.Context, token string) (Public, error) {
	d, err := svc.byToken(ctx, token)
	if err != nil {
		return Public{}, err
	}
	return d.Public(), nil
}

func (svc *service) Confirm(ctx context.Context, token string, conf Confirmation) (Public, error) {
	d, err := svc.byToken(ctx, token)
	if err != nil {
		return Public{}, err
	}
	if d.IsPaid() {
		return Public{}, core.NewValidationError(errAlreadyPaid)
	}

	methode := core.CleanString(conf.MethodePaiement, true /* lower */)
	if methode == "" {
		methode = MethodeEnLigne
	}
	paid := d.Restant()
	pay(&d.Paiement, methode, today())
	d.LienToken = null.String{}
	if d.Paiement, err = svc.save(ctx, d.Paiement); err != nil {
		return Public{}, err
	}

	if d.MerkezEmail != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: d.MerkezNom, Address: d.MerkezEmail}},
			Subject:      fmt.Sprintf("Paiement reçu de %s %s", d.ElevePrenom, d.EleveNom),
			TemplateName: "paiement_confirmed",
			TemplateData: map[string]interface{}{
				"Name":     d.MerkezNom,
				"EleveNom": d.ElevePrenom + " " + d.EleveNom,
				"Mois":     fmt.Sprintf("%02d/%d", d.Mois, d.Annee),
				"Montant":  paid.StringFixed(2),
				"Methode":  methode,
			},
		})
	}
	return d.Public(), nil
}

func (svc *service) SendReminders(ctx context.Context, merkezID int) (int, error) {
	if err := svc.RefreshOverdue(ctx, merkezID); err != nil {
		return 0, err
	}
	t := now()
	candidates, err := svc.reports.ReminderCandidates(ctx, merkezID, core.DateOf(t), t.Add(-ReminderInterval))
	if err != nil {
		return 0, errors.Wrap(err, "querying reminder candidates")
	}

	var msgs []*core.EmailMessage
	for _, d := range candidates {
		to := d.ContactEmail()
		if to == "" {
			continue
		}
		p, err := svc.repo.GetPaiement(ctx, d.ID)
		if err != nil {
			return len(msgs), err
		}
		p.RappelEnvoye = true
		p.DateRappel = null.TimeFrom(t)
		if _, err = svc.save(ctx, p); err != nil {
			return len(msgs), err
		}

		name := d.ElevePrenom + " " + d.EleveNom
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: name, Address: to}},
			Subject:      fmt.Sprintf("Rappel de paiement - %s", d.MerkezNom),
			TemplateName: "paiement_reminder",
			TemplateData: map[string]interface{}{
				"Name":      name,
				"MerkezNom": d.MerkezNom,
				"Mois":      fmt.Sprintf("%02d/%d", d.Mois, d.Annee),
				"Restant":   d.Restant().StringFixed(2),
				"Echeance":  d.DateEcheance.Format("02/01/2006"),
				"URL":       d.LienPaiement.String,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return len(msgs), nil
}
