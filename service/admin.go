package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"scrooge-bank/models"
)

// SeedAdmin creates an admin user unless the email is already registered, in
// which case the existing user is left as it is.
func (b *Bank) SeedAdmin(ctx context.Context, name, email, passwordHash string) error {
	_, err := b.RegisterUser(ctx, name, email, passwordHash, models.RoleAdmin)
	if errors.Is(err, ErrEmailInUse) {
		b.log.Info("admin already present", zap.String("email", NormalizeEmail(email)))
		return nil
	}
	return err
}
