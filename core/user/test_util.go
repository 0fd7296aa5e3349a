package user

import (
	"context"

	"github.com/maraakiz/maraakiz/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service sending its emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, files core.FileStorage, conf *core.Config) Service {
	initTokenGenerator(conf)
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			files:   files,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeTestToken exposes the password reset token generator to other packages' tests.
func MakeTestToken(usr User) string {
	token, _ := makeToken(usr)
	return token
}
