package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/maraakiz/maraakiz/core"
)

// User types
const (
	TypeProf  = "prof"
	TypeEleve = "eleve"
	TypeAdmin = "admin"
)

// Registration types, as chosen on the signup form.
const (
	RegisterProfesseur = "professeur"
	RegisterInstitut   = "institut"
	RegisterEleve      = "eleve"
)

// Avatar types
const (
	AvatarDefault = "default"
	AvatarCustom  = "custom"
)

var profAvatars = map[string]string{
	"homme": "/avatars/prof-homme.webp",
	"femme": "/avatars/prof-femme.webp",
}

// ProfAvatarForGenre returns the default avatar of a prof; "" when the genre has none.
func ProfAvatarForGenre(genre string) string {
	return profAvatars[strings.ToLower(strings.TrimSpace(genre))]
}

type User struct {
	ID                      int         `json:"id"`
	Email                   string      `json:"email"`
	Nom                     string      `json:"nom"`
	PasswordHash            []byte      `json:"-"`
	UserType                string      `json:"user_type"`
	MerkezID                null.Int    `json:"merkez_id"`
	InstitutID              null.Int    `json:"institut_id"`
	Genre                   null.String `json:"genre"`
	AvatarURL               null.String `json:"avatar_url"`
	AvatarType              string      `json:"avatar_type"`
	IsActive                bool        `json:"is_active"`
	IsAdmin                 bool        `json:"is_admin"`
	GoogleAccessToken       string      `json:"-"`
	GoogleRefreshToken      string      `json:"-"`
	GoogleTokenExpiry       null.Time   `json:"-"`
	GoogleCalendarConnected bool        `json:"google_calendar_connected"`
	CreatedAt               time.Time   `json:"created_at"` // UTC
	UpdatedAt               time.Time   `json:"updated_at"` // UTC
	LastLogin               null.Time   `json:"last_login"` // UTC
}

func (User) TableName() string { return "users" }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsProf() bool  { return u.UserType == TypeProf }
func (u *User) IsEleve() bool { return u.UserType == TypeEleve }

// HasMerkez reports whether the user owns a merkez (professeur or institut).
func (u *User) HasMerkez() bool { return u.MerkezID.Valid && u.MerkezID.Int > 0 }

// CtxMerkezID returns the merkez of the user, 0 if none.
func (u *User) CtxMerkezID() int {
	if !u.HasMerkez() {
		return 0
	}
	return u.MerkezID.Int
}

// HasGoogleTokens reports whether an OAuth token pair is stored.
func (u *User) HasGoogleTokens() bool {
	return u.GoogleAccessToken != "" || u.GoogleRefreshToken != ""
}

// NewRegistration contains information needed to sign up.
type NewRegistration struct {
	Nom       string `json:"nom" validate:"required,notblank,max=255"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	Telephone string `json:"telephone" validate:"omitempty,max=50"`
	Type      string `json:"type" validate:"required,oneof=professeur institut eleve"`
}

func (nr *NewRegistration) Validate(validate *validator.Validate) error {
	nr.Nom = core.StripTags(nr.Nom)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	nr.Telephone = core.CleanString(nr.Telephone)
	nr.Type = core.CleanString(nr.Type, true /* lower */)
	return validate.Struct(nr)
}

// IsMerkez reports whether the registration creates a merkez.
func (nr NewRegistration) IsMerkez() bool {
	return nr.Type == RegisterProfesseur || nr.Type == RegisterInstitut
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// ProfileUpdate defines what a user may change on their own account.
type ProfileUpdate struct {
	Nom              *string `json:"nom" validate:"omitempty,notblank,max=255"`
	Genre            *string `json:"genre" validate:"omitempty,max=20"`
	UseDefaultAvatar *bool   `json:"use_default_avatar"`
}

func (pu *ProfileUpdate) Validate(validate *validator.Validate) error {
	pu.Nom = core.StripTagsPtr(pu.Nom)
	if pu.Genre != nil {
		g := core.CleanString(*pu.Genre, true /* lower */)
		pu.Genre = &g
	}
	return validate.Struct(pu)
}

// GoogleTokens is the OAuth state persisted for Google Calendar sync.
type GoogleTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type QueryFilter struct {
	Search   string
	UserType string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.UserType = core.CleanString(qf.UserType, true /* lower */)
}

// GetFilter selects a single user; the first non-zero field wins.
type GetFilter struct {
	ID    int
	Email string
}
