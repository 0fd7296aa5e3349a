package cours

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	ErrNotFound      = fmt.Errorf("cours %w", core.ErrNotFound)
	ErrTrameNotFound = fmt.Errorf("trame %w", core.ErrNotFound)

	errGoogleDisabled = errors.New("google calendar is not configured")
	errInvalidState   = errors.New("invalid state")
	errNoSlot         = errors.New("the schedule does not produce any cours in this period")
)

type (
	Repository interface {
		QueryCours(ctx context.Context, merkezID int, filter QueryFilter) ([]Cours, error)
		GetCours(ctx context.Context, id int) (Cours, error)
		// CreateCours inserts crs and their student links in one transaction.
		// When the cours are recurrent, the first one becomes the parent of the series.
		CreateCours(ctx context.Context, crs []Cours, eleveIDs []int) ([]Cours, error)
		// UpdateCours saves c; eleveIDs replaces the enrolled students unless nil.
		// incrDonnes increments the merkez nombre_cours_donnes in the same transaction.
		UpdateCours(ctx context.Context, c Cours, eleveIDs []int, presences map[int]bool, incrDonnes bool) (Cours, error)
		SetGoogleEventID(ctx context.Context, id int, eventID string) error
		// QuerySeries returns the parent and every child of a recurrence series.
		QuerySeries(ctx context.Context, parentID int) ([]Cours, error)
		DeleteCours(ctx context.Context, ids ...int) error

		QueryTrames(ctx context.Context, merkezID int) ([]Trame, error)
		GetTrame(ctx context.Context, id int) (Trame, error)
		CreateTrame(ctx context.Context, t Trame) (Trame, error)
		// DeleteTrame detaches the cours using the trame, then deletes it.
		DeleteTrame(ctx context.Context, id int) error
	}

	Service interface {
		Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Cours, error)
		Get(ctx context.Context, merkezID, id int) (Cours, error)
		Create(ctx context.Context, usr user.User, nc NewCours) (Cours, error)
		CreateRecurrent(ctx context.Context, usr user.User, nr NewRecurrentCours) (RecurrentResult, error)
		Update(ctx context.Context, usr user.User, id int, upd Update) (Cours, error)
		Delete(ctx context.Context, usr user.User, id int, allRecurrences bool) error

		QueryTrames(ctx context.Context, merkezID int) ([]Trame, error)
		CreateTrame(ctx context.Context, merkezID int, nt NewTrame) (Trame, error)
		DeleteTrame(ctx context.Context, merkezID, id int) error

		GoogleAuthURL(usr user.User) (string, string, error)
		GoogleCallback(ctx context.Context, usr user.User, code, state string) error
		GoogleDisconnect(ctx context.Context, usr user.User) error
		GoogleStatus(usr user.User) GoogleStatus
	}

	service struct {
		repo     Repository
		eleveSvc eleve.Service
		usrSvc   user.Service
		calendar CalendarProvider // nil when Google is not configured
		logger   core.Logger

		statesMu sync.Mutex
		states   map[int]string // {user id: pending OAuth state}
	}
)

func NewService(
	repo Repository,
	eleveSvc eleve.Service,
	usrSvc user.Service,
	calendar CalendarProvider,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		eleveSvc: eleveSvc,
		usrSvc:   usrSvc,
		calendar: calendar,
		logger:   logger,
		states:   make(map[int]string),
	}
}

func (svc *service) Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Cours, error) {
	filter.Statut = core.CleanString(filter.Statut, true /* lower */)
	return svc.repo.QueryCours(ctx, merkezID, filter)
}

func (svc *service) Get(ctx context.Context, merkezID, id int) (Cours, error) {
	c, err := svc.repo.GetCours(ctx, id)
	if err != nil {
		return Cours{}, err
	}
	if c.MerkezID != merkezID {
		return Cours{}, ErrNotFound
	}
	return c, nil
}

// checkEleves makes sure every student belongs to the merkez.
func (svc *service) checkEleves(ctx context.Context, merkezID int, ids []int) ([]int, error) {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if _, err := svc.eleveSvc.Get(ctx, merkezID, id); err != nil {
			return nil, err
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func (svc *service) checkTrame(ctx context.Context, merkezID int, id *int) error {
	if id == nil || *id <= 0 {
		return nil
	}
	t, err := svc.repo.GetTrame(ctx, *id)
	if err != nil {
		return err
	}
	if t.MerkezID != merkezID {
		return ErrTrameNotFound
	}
	return nil
}

func (svc *service) Create(ctx context.Context, usr user.User, nc NewCours) (Cours, error) {
	merkezID := usr.CtxMerkezID()
	eleveIDs, err := svc.checkEleves(ctx, merkezID, nc.EleveIDs)
	if err != nil {
		return Cours{}, err
	}
	if err = svc.checkTrame(ctx, merkezID, nc.TrameCoursID); err != nil {
		return Cours{}, err
	}

	c := nc.toCours(merkezID, nc.DateDebut.Time, nc.DateFin.Time, time.Now().UTC())
	crs, err := svc.repo.CreateCours(ctx, []Cours{c}, eleveIDs)
	if err != nil {
		return Cours{}, errors.Wrap(err, "creating cours")
	}
	c = crs[0]

	if nc.Sync() {
		c = svc.pushEvent(ctx, &usr, c)
	}
	return c, nil
}

func (svc *service) CreateRecurrent(ctx context.Context, usr user.User, nr NewRecurrentCours) (RecurrentResult, error) {
	merkezID := usr.CtxMerkezID()
	eleveIDs, err := svc.checkEleves(ctx, merkezID, nr.EleveIDs)
	if err != nil {
		return RecurrentResult{}, err
	}
	if err = svc.checkTrame(ctx, merkezID, nr.TrameCoursID); err != nil {
		return RecurrentResult{}, err
	}

	slots, err := ExpandSchedule(nr.RecurrenceSchedule, nr.StartDate, nr.EndDate)
	if err != nil {
		return RecurrentResult{}, err
	}
	if len(slots) == 0 {
		return RecurrentResult{}, core.NewValidationError(errNoSlot)
	}

	rule := nr.Rule()
	ruleJSON, err := rule.JSON()
	if err != nil {
		return RecurrentResult{}, errors.Wrap(err, "encoding recurrence rule")
	}

	now := time.Now().UTC()
	crs := make([]Cours, len(slots))
	for i, slot := range slots {
		c := nr.toCours(merkezID, slot.Debut, slot.Fin, now)
		c.IsRecurrent = true
		c.RecurrenceRule = ruleJSON
		if nr.Statut != "" {
			c.Statut = nr.Statut
		}
		crs[i] = c
	}
	if crs, err = svc.repo.CreateCours(ctx, crs, eleveIDs); err != nil {
		return RecurrentResult{}, errors.Wrap(err, "creating cours series")
	}

	ids := make([]int, len(crs))
	for i, c := range crs {
		ids[i] = c.ID
		if nr.Sync() {
			svc.pushEvent(ctx, &usr, c)
		}
	}
	return RecurrentResult{
		Message:        fmt.Sprintf("%d cours créés avec succès", len(crs)),
		CoursIDs:       ids,
		ParentID:       crs[0].ID,
		RecurrenceRule: rule,
	}, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id int, upd Update) (Cours, error) {
	merkezID := usr.CtxMerkezID()
	c, err := svc.Get(ctx, merkezID, id)
	if err != nil {
		return Cours{}, err
	}
	wasTermine := c.Statut == StatutTermine

	var eleveIDs []int
	if upd.EleveIDs != nil {
		if eleveIDs, err = svc.checkEleves(ctx, merkezID, *upd.EleveIDs); err != nil {
			return Cours{}, err
		}
	}
	if err = svc.checkTrame(ctx, merkezID, upd.TrameCoursID); err != nil {
		return Cours{}, err
	}
	if err = upd.Apply(&c); err != nil {
		return Cours{}, err
	}
	c.UpdatedAt = time.Now().UTC()

	incrDonnes := !wasTermine && c.Statut == StatutTermine
	if c, err = svc.repo.UpdateCours(ctx, c, eleveIDs, upd.Presences, incrDonnes); err != nil {
		return Cours{}, errors.Wrap(err, "updating cours")
	}

	if c.GoogleEventID.Valid && svc.calendarEnabled(usr) {
		tok, err := svc.calendar.UpdateEvent(ctx, tokensOf(usr), c.GoogleEventID.String, c.Event())
		if err != nil {
			svc.logger.Error(fmt.Sprintf("updating google event of cours %d: %v", c.ID, err), err, usr)
		} else {
			svc.saveRefreshedTokens(ctx, &usr, tok)
		}
	}
	return c, nil
}

func (svc *service) Delete(ctx context.Context, usr user.User, id int, allRecurrences bool) error {
	c, err := svc.Get(ctx, usr.CtxMerkezID(), id)
	if err != nil {
		return err
	}

	targets := []Cours{c}
	if allRecurrences && c.IsSeriesParent() {
		if targets, err = svc.repo.QuerySeries(ctx, c.ID); err != nil {
			return errors.Wrap(err, "querying series")
		}
	}

	ids := make([]int, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
		if t.GoogleEventID.Valid && svc.calendarEnabled(usr) {
			tok, err := svc.calendar.DeleteEvent(ctx, tokensOf(usr), t.GoogleEventID.String)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("deleting google event of cours %d: %v", t.ID, err), usr)
				continue
			}
			svc.saveRefreshedTokens(ctx, &usr, tok)
		}
	}
	return svc.repo.DeleteCours(ctx, ids...)
}

func (svc *service) calendarEnabled(usr user.User) bool {
	return svc.calendar != nil && usr.GoogleCalendarConnected && usr.HasGoogleTokens()
}

// pushEvent creates the Google event of c. Failures are logged and never fail the caller.
func (svc *service) pushEvent(ctx context.Context, usr *user.User, c Cours) Cours {
	if !svc.calendarEnabled(*usr) {
		return c
	}
	eventID, tok, err := svc.calendar.CreateEvent(ctx, tokensOf(*usr), c.Event())
	if err != nil {
		svc.logger.Error(fmt.Sprintf("creating google event of cours %d: %v", c.ID, err), err, *usr)
		return c
	}
	svc.saveRefreshedTokens(ctx, usr, tok)
	if err = svc.repo.SetGoogleEventID(ctx, c.ID, eventID); err != nil {
		svc.logger.Error(fmt.Sprintf("saving google event id of cours %d: %v", c.ID, err), err, *usr)
		return c
	}
	c.GoogleEventID.SetValid(eventID)
	return c
}

// saveRefreshedTokens persists tok when Google refreshed it and copies it into usr.
func (svc *service) saveRefreshedTokens(ctx context.Context, usr *user.User, tok user.GoogleTokens) {
	if tok.AccessToken == "" || tok.AccessToken == usr.GoogleAccessToken {
		return
	}
	if _, err := svc.usrSvc.SaveGoogleTokens(ctx, *usr, tok); err != nil {
		svc.logger.Error(fmt.Sprintf("saving refreshed google tokens: %v", err), err, *usr)
	}
	usr.GoogleAccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		usr.GoogleRefreshToken = tok.RefreshToken
	}
	usr.GoogleTokenExpiry = null.NewTime(tok.Expiry.UTC(), !tok.Expiry.IsZero())
}

func (svc *service) QueryTrames(ctx context.Context, merkezID int) ([]Trame, error) {
	return svc.repo.QueryTrames(ctx, merkezID)
}

func (svc *service) CreateTrame(ctx context.Context, merkezID int, nt NewTrame) (Trame, error) {
	return svc.repo.CreateTrame(ctx, nt.toTrame(merkezID, time.Now().UTC()))
}

func (svc *service) DeleteTrame(ctx context.Context, merkezID, id int) error {
	t, err := svc.repo.GetTrame(ctx, id)
	if err != nil {
		return err
	}
	if t.MerkezID != merkezID {
		return ErrTrameNotFound
	}
	return svc.repo.DeleteTrame(ctx, id)
}

func (svc *service) GoogleAuthURL(usr user.User) (string, string, error) {
	if svc.calendar == nil {
		return "", "", core.NewValidationError(errGoogleDisabled)
	}
	state := uuid.New().String()
	svc.statesMu.Lock()
	svc.states[usr.ID] = state
	svc.statesMu.Unlock()
	return svc.calendar.AuthURL(state), state, nil
}

func (svc *service) GoogleCallback(ctx context.Context, usr user.User, code, state string) error {
	if svc.calendar == nil {
		return core.NewValidationError(errGoogleDisabled)
	}
	svc.statesMu.Lock()
	expected, ok := svc.states[usr.ID]
	if ok && expected == state {
		delete(svc.states, usr.ID)
	}
	svc.statesMu.Unlock()
	if !ok || expected != state {
		return core.NewFieldError("state", errInvalidState.Error())
	}

	tok, err := svc.calendar.Exchange(ctx, code)
	if err != nil {
		return core.NewFieldError("code", fmt.Sprintf("google authorization failed: %v", err))
	}
	_, err = svc.usrSvc.SaveGoogleTokens(ctx, usr, tok)
	return err
}

func (svc *service) GoogleDisconnect(ctx context.Context, usr user.User) error {
	_, err := svc.usrSvc.ClearGoogleTokens(ctx, usr)
	return err
}

func (svc *service) GoogleStatus(usr user.User) GoogleStatus {
	return GoogleStatus{Connected: usr.GoogleCalendarConnected, HasTokens: usr.HasGoogleTokens()}
}
