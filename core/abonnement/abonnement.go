package abonnement

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
)

// Plans
const (
	PlanMensuel = "mensuel"
	Plan6Mois   = "6e_mois"
	PlanAnnuel  = "annuel"
)

var (
	planMonths = map[string]int{
		PlanMensuel: 1,
		Plan6Mois:   6,
		PlanAnnuel:  12,
	}

	ErrNotFound = fmt.Errorf("abonnement %w", core.ErrNotFound)
)

// EndDate returns the end of a plan started on start.
func EndDate(plan string, start core.Date) core.Date {
	return core.Date{Time: start.AddDate(0, planMonths[plan], 0)}
}

type Abonnement struct {
	ID        int       `json:"id"`
	MerkezID  int       `json:"merkez_id"`
	PlanName  string    `json:"plan_name"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (Abonnement) TableName() string { return "abonnements" }

type NewAbonnement struct {
	MerkezID  int       `json:"merkez_id" validate:"required,min=1"`
	PlanName  string    `json:"plan_name" validate:"oneof=mensuel 6e_mois annuel"`
	StartDate core.Date `json:"start_date"`
}

func (na *NewAbonnement) Validate(validate *validator.Validate) error {
	if na.PlanName = core.CleanString(na.PlanName, true /* lower */); na.PlanName == "" {
		na.PlanName = Plan6Mois
	}
	return validate.Struct(na)
}

type (
	Repository interface {
		QueryAbonnements(ctx context.Context, merkezID int) ([]Abonnement, error)
		GetAbonnement(ctx context.Context, id int) (Abonnement, error)
		// CreateAbonnement also flags the merkez abonnement_actif.
		CreateAbonnement(ctx context.Context, a Abonnement) (Abonnement, error)
		// DeactivateAbonnement deactivates it and recomputes the merkez abonnement_actif.
		DeactivateAbonnement(ctx context.Context, id int, at time.Time) (Abonnement, error)
		// ExpireAbonnements deactivates the subscriptions ended before today and clears abonnement_actif
		// on the merkez left without an active one. It returns the number of expired subscriptions.
		ExpireAbonnements(ctx context.Context, today core.Date) (int, error)
	}

	Service interface {
		Query(ctx context.Context, merkezID int) ([]Abonnement, error)
		Create(ctx context.Context, na NewAbonnement) (Abonnement, error)
		Cancel(ctx context.Context, id int) (Abonnement, error)
		ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		repo      Repository
		merkezSvc merkez.Service
	}
)

func NewService(repo Repository, merkezSvc merkez.Service) Service {
	return &service{repo: repo, merkezSvc: merkezSvc}
}

func (svc *service) Query(ctx context.Context, merkezID int) ([]Abonnement, error) {
	return svc.repo.QueryAbonnements(ctx, merkezID)
}

func (svc *service) Create(ctx context.Context, na NewAbonnement) (Abonnement, error) {
	if _, err := svc.merkezSvc.GetByID(ctx, na.MerkezID); err != nil {
		return Abonnement{}, err
	}
	now := time.Now().UTC()
	start := na.StartDate
	if start.IsZero() {
		start = core.DateOf(now)
	}
	a := Abonnement{
		MerkezID:  na.MerkezID,
		PlanName:  na.PlanName,
		StartDate: start,
		EndDate:   EndDate(na.PlanName, start),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a, err := svc.repo.CreateAbonnement(ctx, a)
	if err != nil {
		return Abonnement{}, errors.Wrap(err, "creating abonnement")
	}
	return a, nil
}

func (svc *service) Cancel(ctx context.Context, id int) (Abonnement, error) {
	if _, err := svc.repo.GetAbonnement(ctx, id); err != nil {
		return Abonnement{}, err
	}
	return svc.repo.DeactivateAbonnement(ctx, id, time.Now().UTC())
}

func (svc *service) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	n, err := svc.repo.ExpireAbonnements(ctx, core.DateOf(now.UTC()))
	if err != nil {
		return 0, errors.Wrap(err, "expiring abonnements")
	}
	return n, nil
}
