package cours

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
)

// Cours statuses
const (
	StatutPlanifie = "planifie"
	StatutTermine  = "termine"
	StatutAnnule   = "annule"
)

// Cours types
const (
	TypePresentiel = "presentiel"
	TypeEnLigne    = "en_ligne"
)

const defaultDureeStandard = 60

type (
	Cours struct {
		ID                 int         `json:"id"`
		MerkezID           int         `json:"merkez_id"`
		Titre              string      `json:"titre"`
		Matiere            null.String `json:"matiere"`
		Description        null.String `json:"description"`
		DateDebut          time.Time   `json:"date_debut"` // UTC
		DateFin            time.Time   `json:"date_fin"`   // UTC
		Duree              int         `json:"duree"`      // minutes
		TypeCours          string      `json:"type_cours"`
		LienVisio          null.String `json:"lien_visio"`
		Statut             string      `json:"statut"`
		TrameCoursID       null.Int    `json:"trame_cours_id"`
		GoogleEventID      null.String `json:"google_event_id"`
		IsRecurrent        bool        `json:"is_recurrent"`
		RecurrenceRule     null.JSON   `json:"recurrence_rule"`
		RecurrenceParentID null.Int    `json:"recurrence_parent_id"`
		CreatedAt          time.Time   `json:"created_at"` // UTC
		UpdatedAt          time.Time   `json:"updated_at"` // UTC

		Eleves []CoursEleve `json:"eleves" gorm:"-"`
	}

	// CoursEleve is a student enrolled in a cours, with their attendance.
	CoursEleve struct {
		ID       int    `json:"id"`
		Nom      string `json:"nom"`
		Prenom   string `json:"prenom"`
		Presente bool   `json:"presente"`
	}

	Trame struct {
		ID            int         `json:"id"`
		MerkezID      int         `json:"merkez_id"`
		Nom           string      `json:"nom"`
		Matiere       null.String `json:"matiere"`
		Description   null.String `json:"description"`
		PlanCours     null.String `json:"plan_cours"`
		Objectifs     null.String `json:"objectifs"`
		DureeStandard int         `json:"duree_standard"`
		Ressources    null.String `json:"ressources"`
		DevoirsType   null.String `json:"devoirs_type"`
		CreatedAt     time.Time   `json:"created_at"` // UTC
		UpdatedAt     time.Time   `json:"updated_at"` // UTC
	}
)

func (Cours) TableName() string { return "cours" }
func (Trame) TableName() string { return "trames_cours" }

// IsSeriesParent reports whether c heads a recurrence series.
func (c Cours) IsSeriesParent() bool {
	return c.IsRecurrent && c.RecurrenceParentID.Valid && c.RecurrenceParentID.Int == c.ID
}

// EleveIDs returns the ids of the enrolled students.
func (c Cours) EleveIDs() []int {
	ids := make([]int, len(c.Eleves))
	for i, e := range c.Eleves {
		ids[i] = e.ID
	}
	return ids
}

// Event builds the calendar event describing c.
func (c Cours) Event() Event {
	names := make([]string, len(c.Eleves))
	for i, e := range c.Eleves {
		names[i] = strings.TrimSpace(e.Prenom + " " + e.Nom)
	}
	return Event{
		Titre:       c.Titre,
		Description: c.Description.String,
		EleveNoms:   names,
		LienVisio:   c.LienVisio.String,
		Debut:       c.DateDebut,
		Fin:         c.DateFin,
	}
}

func minutesBetween(debut, fin time.Time) int {
	return int(fin.Sub(debut) / time.Minute)
}

func nullStr(s string) null.String { return null.NewString(s, s != "") }

// cleanTypeCours lowers t and accepts the "en-ligne" spelling.
func cleanTypeCours(t string) string {
	return strings.ReplaceAll(core.CleanString(t, true /* lower */), "-", "_")
}

type NewCours struct {
	EleveIDs     []int         `json:"eleve_ids"`
	Titre        string        `json:"titre" validate:"required,notblank,max=255"`
	Matiere      string        `json:"matiere" validate:"omitempty,max=100"`
	Description  string        `json:"description"`
	DateDebut    core.DateTime `json:"date_debut"`
	DateFin      core.DateTime `json:"date_fin"`
	TypeCours    string        `json:"type_cours" validate:"omitempty,oneof=presentiel en_ligne"`
	LienVisio    string        `json:"lien_visio" validate:"omitempty,max=500"`
	TrameCoursID *int          `json:"trame_cours_id"`
	SyncToGoogle *bool         `json:"sync_to_google"`
}

func (nc *NewCours) Validate(validate *validator.Validate) error {
	nc.Titre = core.StripTags(nc.Titre)
	nc.Matiere = core.StripTags(nc.Matiere)
	nc.Description = core.StripTags(nc.Description)
	nc.LienVisio = core.CleanString(nc.LienVisio)
	nc.TypeCours = cleanTypeCours(nc.TypeCours)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.DateDebut.IsZero() {
		return core.NewFieldError("date_debut", "this field is required")
	}
	if nc.DateFin.IsZero() {
		return core.NewFieldError("date_fin", "this field is required")
	}
	if !nc.DateFin.After(nc.DateDebut.Time) {
		return core.NewFieldError("date_fin", "date_fin must be after date_debut")
	}
	return nil
}

// Sync reports whether the cours should be pushed to Google Calendar (default true).
func (nc NewCours) Sync() bool {
	return nc.SyncToGoogle == nil || *nc.SyncToGoogle
}

func (nc NewCours) toCours(merkezID int, debut, fin, now time.Time) Cours {
	typeCours := nc.TypeCours
	if typeCours == "" {
		typeCours = TypePresentiel
	}
	c := Cours{
		MerkezID:    merkezID,
		Titre:       nc.Titre,
		Matiere:     nullStr(nc.Matiere),
		Description: nullStr(nc.Description),
		DateDebut:   debut.UTC(),
		DateFin:     fin.UTC(),
		Duree:       minutesBetween(debut, fin),
		TypeCours:   typeCours,
		LienVisio:   nullStr(nc.LienVisio),
		Statut:      StatutPlanifie,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nc.TrameCoursID != nil {
		c.TrameCoursID = null.IntFrom(*nc.TrameCoursID)
	}
	return c
}

// TimeRange is a "HH:MM" start and end on a weekday of a recurrence schedule.
type TimeRange struct {
	Debut string `json:"debut" validate:"required,hhmm"`
	Fin   string `json:"fin" validate:"required,hhmm"`
}

// RecurrenceRule is stored on every cours of a series. Schedule keys are weekdays, "0" being Monday.
type RecurrenceRule struct {
	Schedule  map[string]TimeRange `json:"schedule"`
	StartDate core.Date            `json:"start_date"`
	EndDate   core.Date            `json:"end_date"`
}

type NewRecurrentCours struct {
	NewCours
	RecurrenceSchedule map[string]TimeRange `json:"recurrence_schedule" validate:"required,min=1,dive"`
	StartDate          core.Date            `json:"start_date"`
	EndDate            core.Date            `json:"end_date"`
	Statut             string               `json:"statut" validate:"omitempty,oneof=planifie termine annule"`

	// the calendar page names the period recurrence_start_date / recurrence_end_date
	RecurrenceStartDate core.Date `json:"recurrence_start_date"`
	RecurrenceEndDate   core.Date `json:"recurrence_end_date"`
}

func (nr *NewRecurrentCours) Validate(validate *validator.Validate) error {
	nr.Titre = core.StripTags(nr.Titre)
	nr.Matiere = core.StripTags(nr.Matiere)
	nr.Description = core.StripTags(nr.Description)
	nr.LienVisio = core.CleanString(nr.LienVisio)
	nr.TypeCours = cleanTypeCours(nr.TypeCours)
	nr.Statut = core.CleanString(nr.Statut, true /* lower */)
	if nr.StartDate.IsZero() {
		nr.StartDate = nr.RecurrenceStartDate
	}
	if nr.EndDate.IsZero() {
		nr.EndDate = nr.RecurrenceEndDate
	}
	if err := validate.Struct(nr); err != nil {
		return err
	}
	for day := range nr.RecurrenceSchedule {
		if d, err := strconv.Atoi(day); err != nil || d < 0 || d > 6 {
			return core.NewFieldError("recurrence_schedule", fmt.Sprintf("invalid weekday %q, expected 0 (Monday) to 6 (Sunday)", day))
		}
	}
	if nr.StartDate.IsZero() {
		return core.NewFieldError("start_date", "this field is required")
	}
	if nr.EndDate.IsZero() {
		return core.NewFieldError("end_date", "this field is required")
	}
	if nr.EndDate.Before(nr.StartDate) {
		return core.NewFieldError("end_date", "end_date must not be before start_date")
	}
	return nil
}

func (nr NewRecurrentCours) Rule() RecurrenceRule {
	return RecurrenceRule{Schedule: nr.RecurrenceSchedule, StartDate: nr.StartDate, EndDate: nr.EndDate}
}

// Slot is one occurrence generated from a recurrence schedule.
type Slot struct {
	Debut time.Time
	Fin   time.Time
}

// mondayIndex converts a time.Weekday (Sunday = 0) to the schedule numbering (Monday = 0).
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// ExpandSchedule walks every day from start to end inclusive and yields a slot for each day whose
// weekday appears in schedule. A range ending before (or when) it starts is an error.
func ExpandSchedule(schedule map[string]TimeRange, start, end core.Date) ([]Slot, error) {
	byDay := make(map[int]TimeRange, len(schedule))
	for key, tr := range schedule {
		d, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || d < 0 || d > 6 {
			return nil, core.NewFieldError("recurrence_schedule", fmt.Sprintf("invalid weekday %q", key))
		}
		byDay[d] = tr
	}

	var slots []Slot
	for day := start; !end.Before(day); day = day.AddDays(1) {
		tr, ok := byDay[mondayIndex(day.Weekday())]
		if !ok {
			continue
		}
		debut, err := clockOn(day.Time, tr.Debut)
		if err != nil {
			return nil, core.NewFieldError("recurrence_schedule", fmt.Sprintf("invalid time %q", tr.Debut))
		}
		fin, err := clockOn(day.Time, tr.Fin)
		if err != nil {
			return nil, core.NewFieldError("recurrence_schedule", fmt.Sprintf("invalid time %q", tr.Fin))
		}
		if !fin.After(debut) {
			return nil, core.NewFieldError("recurrence_schedule", fmt.Sprintf("%s: fin must be after debut", day))
		}
		slots = append(slots, Slot{Debut: debut, Fin: fin})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Debut.Before(slots[j].Debut) })
	return slots, nil
}

// RecurrentResult is returned once a series is created.
type RecurrentResult struct {
	Message        string         `json:"message"`
	CoursIDs       []int          `json:"cours_ids"`
	ParentID       int            `json:"parent_id"`
	RecurrenceRule RecurrenceRule `json:"recurrence_rule"`
}

func (rr RecurrenceRule) JSON() (null.JSON, error) {
	b, err := json.Marshal(rr)
	if err != nil {
		return null.JSON{}, err
	}
	return null.JSONFrom(b), nil
}

type Update struct {
	EleveIDs     *[]int         `json:"eleve_ids"`
	Titre        *string        `json:"titre" validate:"omitempty,notblank,max=255"`
	Matiere      *string        `json:"matiere" validate:"omitempty,max=100"`
	Description  *string        `json:"description"`
	DateDebut    *core.DateTime `json:"date_debut"`
	DateFin      *core.DateTime `json:"date_fin"`
	TypeCours    *string        `json:"type_cours" validate:"omitempty,oneof=presentiel en_ligne"`
	LienVisio    *string        `json:"lien_visio" validate:"omitempty,max=500"`
	Statut       *string        `json:"statut" validate:"omitempty,oneof=planifie termine annule"`
	TrameCoursID *int           `json:"trame_cours_id"`
	Presences    map[int]bool   `json:"presences"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	u.Titre = core.StripTagsPtr(u.Titre)
	u.Matiere = core.StripTagsPtr(u.Matiere)
	u.Description = core.StripTagsPtr(u.Description)
	if u.TypeCours != nil {
		t := cleanTypeCours(*u.TypeCours)
		u.TypeCours = &t
	}
	return validate.Struct(u)
}

// Apply copies the provided fields onto c and recomputes the duration.
func (u Update) Apply(c *Cours) error {
	if u.Titre != nil {
		c.Titre = *u.Titre
	}
	if u.Matiere != nil {
		c.Matiere = nullStr(*u.Matiere)
	}
	if u.Description != nil {
		c.Description = nullStr(*u.Description)
	}
	if u.DateDebut != nil && !u.DateDebut.IsZero() {
		c.DateDebut = u.DateDebut.UTC()
	}
	if u.DateFin != nil && !u.DateFin.IsZero() {
		c.DateFin = u.DateFin.UTC()
	}
	if !c.DateFin.After(c.DateDebut) {
		return core.NewFieldError("date_fin", "date_fin must be after date_debut")
	}
	c.Duree = minutesBetween(c.DateDebut, c.DateFin)
	if u.TypeCours != nil {
		c.TypeCours = *u.TypeCours
	}
	if u.LienVisio != nil {
		c.LienVisio = nullStr(core.CleanString(*u.LienVisio))
	}
	if u.Statut != nil {
		c.Statut = *u.Statut
	}
	if u.TrameCoursID != nil {
		c.TrameCoursID = null.NewInt(*u.TrameCoursID, *u.TrameCoursID > 0)
	}
	return nil
}

type QueryFilter struct {
	StartDate core.Date
	EndDate   core.Date
	EleveID   int
	Statut    string
}

type NewTrame struct {
	Nom           string `json:"nom" validate:"required,notblank,max=255"`
	Matiere       string `json:"matiere" validate:"omitempty,max=100"`
	Description   string `json:"description"`
	PlanCours     string `json:"plan_cours"`
	Objectifs     string `json:"objectifs"`
	DureeStandard int    `json:"duree_standard" validate:"omitempty,min=1"`
	Ressources    string `json:"ressources"`
	DevoirsType   string `json:"devoirs_type" validate:"omitempty,max=100"`
}

func (nt *NewTrame) Validate(validate *validator.Validate) error {
	nt.Nom = core.StripTags(nt.Nom)
	nt.Matiere = core.StripTags(nt.Matiere)
	nt.Description = core.SanitizeRichText(nt.Description)
	nt.PlanCours = core.SanitizeRichText(nt.PlanCours)
	nt.Objectifs = core.SanitizeRichText(nt.Objectifs)
	nt.Ressources = core.SanitizeRichText(nt.Ressources)
	nt.DevoirsType = core.StripTags(nt.DevoirsType)
	return validate.Struct(nt)
}

func (nt NewTrame) toTrame(merkezID int, now time.Time) Trame {
	duree := nt.DureeStandard
	if duree == 0 {
		duree = defaultDureeStandard
	}
	return Trame{
		MerkezID:      merkezID,
		Nom:           nt.Nom,
		Matiere:       nullStr(nt.Matiere),
		Description:   nullStr(nt.Description),
		PlanCours:     nullStr(nt.PlanCours),
		Objectifs:     nullStr(nt.Objectifs),
		DureeStandard: duree,
		Ressources:    nullStr(nt.Ressources),
		DevoirsType:   nullStr(nt.DevoirsType),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
