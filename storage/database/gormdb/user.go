package gormrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

type userRow struct {
	ID           string `gorm:"primaryKey"`
	SchoolID     null.String
	Name         null.String
	Username     null.String
	Email        null.String
	IsActive     null.Bool
	Roles        pq.StringArray `gorm:"type:text[]"`
	PasswordHash null.Bytes
	CreatedAt    null.Time
	UpdatedAt    null.Time
	LastLogin    null.Time
}

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

func (userRow) TableName() string { return "user" }

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepository{repo{db: db}}
}

func boilUser(usr user.User) *userRow {
	return &userRow{
		ID:           usr.ID,
		SchoolID:     nullString(usr.SchoolID),
		Name:         nullString(usr.Name),
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        usr.Roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func unboilUser(u *userRow) user.User {
	if u == nil {
		return user.User{}
	}
	return user.User{
		ID:           u.ID,
		SchoolID:     u.SchoolID.String,
		Name:         u.Name.String,
		Username:     u.Username.String,
		Email:        u.Email.String,
		IsActive:     u.IsActive.Ptr(),
		Roles:        u.Roles,
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

func (r userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	q := r.conn(ctx).Model(&userRow{}).Where("username = ? OR email = ?", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if count > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	u := boilUser(usr)
	if err := r.conn(ctx).Create(u).Error; err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return unboilUser(u), nil
}

func (r userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := r.conn(ctx).Model(&userRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where("name ILIKE ? OR username ILIKE ? OR email ILIKE ?", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roles := r.conn(ctx).Where("false")
			for _, role := range filter.Roles {
				roles = roles.Or(`EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)`, role+"%")
			}
			q = q.Where(roles)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	q = q.Order(orderBy(ordering, userOrderings, "username"))

	var rows []*userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, unboilUser(u))
	}
	return users, nil
}

func (r userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := r.conn(ctx)
	switch {
	case filter.ID != "":
		if !core.IsUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where("id = ?", filter.ID)
	case filter.Username != "":
		q = q.Where("username = ?", filter.Username)
	case filter.Email != "":
		q = q.Where("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where("username = ? OR email = ?", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var u userRow
	if err := q.First(&u).Error; err != nil {
		return user.User{}, trapNotFound(err, user.ErrNotFound, "finding user")
	}
	return unboilUser(&u), nil
}

func (r userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = time.Now().UTC()
	}
	u := boilUser(usr)
	res := r.conn(ctx).Model(u).Select("*").Omit("id", "created_at").Updates(u)
	if err := updated(res, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return r.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (r userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return r.CreateUser(ctx, usr)
	}
	return r.UpdateUser(ctx, usr)
}

func (r userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Where("id IN ?", ids).Delete(&userRow{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting users")
	}
	return int(res.RowsAffected), nil
}
