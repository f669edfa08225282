// Package users is the repository for local accounts: CRUD plus
// Argon2id password hashing and verification.
package users

import (
	"context"

	"github.com/alexedwards/argon2id"
	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "email": true, "name": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	Email    string
	Name     string
	Password string
	Roles    models.RoleList
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.User, error) {
	var hash string
	if opts.Password != "" {
		h, err := argon2id.CreateHash(opts.Password, argon2id.DefaultParams)
		if err != nil {
			return nil, errcodes.ApplicationError()
		}
		hash = h
	}

	roles := opts.Roles
	if roles == nil {
		roles = models.RoleList{}
	}

	user := &models.User{Email: opts.Email, Name: opts.Name, PasswordHash: hash, Roles: roles}
	if _, err := s.db.NewInsert().Model(user).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A user with that email already exists.")
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	if err := s.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "user")
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	if err := s.db.NewSelect().Model(user).Where("email = ?", email).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "user")
	}
	return user, nil
}

// CheckPassword verifies a plaintext password against the stored hash. A
// user provisioned OIDC-only (empty PasswordHash) never matches.
func (s *Service) CheckPassword(user *models.User, password string) bool {
	if user.PasswordHash == "" {
		return false
	}
	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	return err == nil && match
}

type UpdateOptions struct {
	ID      int64
	Version int64
	Name    string
	Roles   models.RoleList
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.User, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.User)(nil)).
			Set("name = ?", opts.Name).
			Set("roles = ?", opts.Roles),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

// ChangePassword rehashes and stores a new password, bumping version under
// the same optimistic-concurrency predicate as any other update.
func (s *Service) ChangePassword(ctx context.Context, id, version int64, newPassword string) (*models.User, error) {
	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return nil, errcodes.ApplicationError()
	}

	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.User)(nil)).Set("password_hash = ?", hash),
		id, version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "user")
	}
	return nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.User], error) {
	q := s.db.NewSelect().Model((*models.User)(nil))
	if params.Filter != "" {
		q = q.Where("email LIKE ? OR name LIKE ?", "%"+params.Filter+"%", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.User]{}, catalog.NotFoundOrDBError(err, "user")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "id")
	if err != nil {
		return catalog.Page[*models.User]{}, err
	}

	var rows []*models.User
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.User]{}, catalog.NotFoundOrDBError(err, "user")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}
