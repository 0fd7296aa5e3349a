package user

import (
	"context"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
)

var (
	// errors
	ErrNotFound    = fmt.Errorf("user %w", core.ErrNotFound)
	ErrEmailExists = errors.New("a user with this email already exists")
	errInvalidUID  = errors.New("invalid uid")

	avatarTypes = []string{"image/jpeg", "image/png", "image/webp"}
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another user than excludedIDs owns email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateUserWithMerkez creates both rows in one transaction and links them.
		CreateUserWithMerkez(ctx context.Context, usr User, mk merkez.Merkez) (User, merkez.Merkez, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Nom or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser deletes the user and the merkez they own, if any.
		DeleteUser(ctx context.Context, id int) error
	}

	Service interface {
		Register(ctx context.Context, nr NewRegistration) (User, error)
		Create(ctx context.Context, usr User, pwd string) (User, error)
		CreateWithMerkez(ctx context.Context, usr User, pwd string, mk merkez.Merkez) (User, merkez.Merkez, error)
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		GetByID(ctx context.Context, id int) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetActive(ctx context.Context, usr User, active bool) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		UpdateProfile(ctx context.Context, usr User, pu ProfileUpdate) (User, error)
		SetAvatar(ctx context.Context, usr User, up core.Upload) (User, error)
		DeleteAvatar(ctx context.Context, usr User) (User, error)
		SaveGoogleTokens(ctx context.Context, usr User, tok GoogleTokens) (User, error)
		ClearGoogleTokens(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, id int) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		files   core.FileStorage
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, files core.FileStorage, conf *core.Config) Service {
	initTokenGenerator(conf)
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		files:   files,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nr NewRegistration) (User, error) {
	usr := User{
		Email:    nr.Email,
		Nom:      nr.Nom,
		UserType: TypeEleve,
	}
	if !nr.IsMerkez() {
		return svc.Create(ctx, usr, nr.Password)
	}

	usr.UserType = TypeProf
	mk := merkez.Merkez{
		Type:      nr.Type,
		Nom:       nr.Nom,
		Email:     nr.Email,
		Telephone: null.NewString(nr.Telephone, nr.Telephone != ""),
		Actif:     true,
		Verifie:   false,
		Nouveau:   true,
	}
	usr, _, err := svc.CreateWithMerkez(ctx, usr, nr.Password, mk)
	return usr, err
}

func (svc *service) prepare(ctx context.Context, usr *User, pwd string) error {
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	if err := svc.CheckEmailUniqueness(ctx, usr.Email); err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	now := time.Now().UTC()
	usr.IsActive = true
	usr.CreatedAt = now
	usr.UpdatedAt = now
	if usr.AvatarType == "" {
		usr.AvatarType = AvatarDefault
	}
	return nil
}

func (svc *service) Create(ctx context.Context, usr User, pwd string) (User, error) {
	if err := svc.prepare(ctx, &usr, pwd); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) CreateWithMerkez(ctx context.Context, usr User, pwd string, mk merkez.Merkez) (User, merkez.Merkez, error) {
	if err := svc.prepare(ctx, &usr, pwd); err != nil {
		return User{}, merkez.Merkez{}, err
	}
	mk.Email = usr.Email
	mk.PrepareNew(usr.CreatedAt)
	return svc.repo.CreateUserWithMerkez(ctx, usr, mk)
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, usr User) (User, error) {
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetActive(ctx context.Context, usr User, active bool) (User, error) {
	usr.IsActive = active
	return svc.Update(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.Update(ctx, usr)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, pu ProfileUpdate) (User, error) {
	if pu.Nom != nil {
		usr.Nom = *pu.Nom
	}
	genreChanged := false
	if pu.Genre != nil && *pu.Genre != usr.Genre.String {
		usr.Genre = null.NewString(*pu.Genre, *pu.Genre != "")
		genreChanged = true
	}
	useDefault := pu.UseDefaultAvatar != nil && *pu.UseDefaultAvatar
	if useDefault || (genreChanged && usr.AvatarType != AvatarCustom) {
		usr.AvatarType = AvatarDefault
		avatar := ProfAvatarForGenre(usr.Genre.String)
		usr.AvatarURL = null.NewString(avatar, avatar != "")
	}
	return svc.Update(ctx, usr)
}

func (svc *service) SetAvatar(ctx context.Context, usr User, up core.Upload) (User, error) {
	if !usr.IsProf() {
		return User{}, errors.Wrap(core.ErrForbidden, "only profs can upload an avatar")
	}
	_, content, err := core.SniffContentType(up.Content, avatarTypes...)
	if err != nil {
		return User{}, err
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	name := fmt.Sprintf("user_%d_%d%s", usr.ID, time.Now().Unix(), ext)
	stored, err := svc.files.Save(ctx, "avatars", name, content)
	if err != nil {
		return User{}, errors.Wrap(err, "saving avatar")
	}

	old := usr.AvatarURL.String
	oldType := usr.AvatarType
	usr.AvatarURL = null.StringFrom(stored.URL)
	usr.AvatarType = AvatarCustom
	if usr, err = svc.Update(ctx, usr); err != nil {
		return User{}, err
	}
	if oldType == AvatarCustom && old != "" {
		_ = svc.files.Delete(ctx, old)
	}
	return usr, nil
}

func (svc *service) DeleteAvatar(ctx context.Context, usr User) (User, error) {
	if usr.AvatarType == AvatarCustom && usr.AvatarURL.String != "" {
		if err := svc.files.Delete(ctx, usr.AvatarURL.String); err != nil {
			return User{}, errors.Wrap(err, "deleting avatar file")
		}
	}
	avatar := ProfAvatarForGenre(usr.Genre.String)
	usr.AvatarURL = null.NewString(avatar, avatar != "")
	usr.AvatarType = AvatarDefault
	return svc.Update(ctx, usr)
}

func (svc *service) SaveGoogleTokens(ctx context.Context, usr User, tok GoogleTokens) (User, error) {
	usr.GoogleAccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		usr.GoogleRefreshToken = tok.RefreshToken
	}
	usr.GoogleTokenExpiry = null.NewTime(tok.Expiry.UTC(), !tok.Expiry.IsZero())
	usr.GoogleCalendarConnected = true
	return svc.Update(ctx, usr)
}

func (svc *service) ClearGoogleTokens(ctx context.Context, usr User) (User, error) {
	usr.GoogleAccessToken = ""
	usr.GoogleRefreshToken = ""
	usr.GoogleTokenExpiry = null.Time{}
	usr.GoogleCalendarConnected = false
	return svc.Update(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := makeToken(usr)
	if err != nil {
		return
	}
	uid := EncodeUID(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Nom, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.Nom,
			"URL":  fmt.Sprintf("%s/password-reset/%s/%s", svc.conf.FrontendBaseURL, uid, token),
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidUID)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errInvalidUID)
		}
		return errors.Wrap(err, "finding user")
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = validateNewPassword(rp.Password, usr.Nom, usr.Email); err != nil {
		return err
	}
	_, err = svc.SetPassword(ctx, usr, rp.Password)
	return err
}
