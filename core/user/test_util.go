package user

import (
	"context"

	"github.com/ecolehub/backend/core"
)

// syncMailService delivers the password reset mail before returning, so tests can inspect it.
type syncMailService struct {
	*service
}

// NewServiceMock returns a Service whose RequestPasswordReset mails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return syncMailService{service: NewService(repo, mailSvc, conf).(*service)}
}

func (svc syncMailService) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	switch {
	case err != nil:
		return err
	case !usr.Active():
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

// ResetToken returns a password reset token for usr as mailed by svc.
func ResetToken(svc Service, usr User) string {
	switch s := svc.(type) {
	case *service:
		return s.tokens.make(usr)
	case syncMailService:
		return s.tokens.make(usr)
	}
	return ""
}
