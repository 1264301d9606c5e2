package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/repository"
)

// UserService is the users admin. It is also used by storefrontctl, which
// passes a nil actor: the operator is trusted.
type UserService interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, actor *models.User, id string, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

type userService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	log       *zap.Logger
}

// NewUserService, constructor.
func NewUserService(userRepo repository.UserRepository, tokenRepo repository.RefreshTokenRepository) UserService {
	return &userService{userRepo: userRepo, tokenRepo: tokenRepo, log: zap.L().Named("users")}
}

func isAdmin(u *models.User) bool {
	return u.EffectivePermissions()&models.PermAdmin != 0
}

// checkGrant keeps a non-admin actor from handing out more than it holds.
func checkGrant(actor *models.User, granted models.Permission) error {
	if actor == nil || isAdmin(actor) {
		return nil
	}
	if granted&models.PermAdmin != 0 {
		return fmt.Errorf("%w: only an admin can grant admin access", pkg.ErrForbidden)
	}
	if granted&^actor.EffectivePermissions() != 0 {
		return fmt.Errorf("%w: you cannot grant permissions you do not hold", pkg.ErrForbidden)
	}
	return nil
}

// checkTarget keeps a non-admin actor away from admin accounts.
func checkTarget(actor, target *models.User) error {
	if actor != nil && !isAdmin(actor) && isAdmin(target) {
		return fmt.Errorf("%w: only an admin can modify an admin", pkg.ErrForbidden)
	}
	return nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	user := &models.User{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	}
	if req.Permissions != nil {
		user.Permissions = *req.Permissions
	}
	if err := checkGrant(actor, user.EffectivePermissions()); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) Update(ctx context.Context, actor *models.User, id string, req *models.UpdateUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(actor, user); err != nil {
		return nil, err
	}

	if actor != nil && actor.ID == id && (req.Role != nil && *req.Role != user.Role || req.Permissions != nil) {
		return nil, fmt.Errorf("%w: you cannot change your own role or permissions", pkg.ErrBadRequest)
	}

	before := user.EffectivePermissions()
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Permissions != nil {
		user.Permissions = *req.Permissions
	}
	if user.EffectivePermissions() != before {
		if err := checkGrant(actor, user.EffectivePermissions()); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	// Outstanding access tokens still carry the old bits; revoking forces a
	// re-login within one access-token lifetime.
	if user.EffectivePermissions() != before {
		if _, err := s.tokenRepo.RevokeAllForUser(ctx, user.ID); err != nil {
			s.log.Warn("failed to revoke sessions after permission change", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor *models.User, id string) error {
	if actor != nil && actor.ID == id {
		return fmt.Errorf("%w: you cannot delete your own account", pkg.ErrBadRequest)
	}
	target, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTarget(actor, target); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	by := ""
	if actor != nil {
		by = actor.ID
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", by))
	return nil
}
