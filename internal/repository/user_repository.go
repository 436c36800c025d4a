package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/utils"
)

const userColumns = "id,username,full_name,email,password_hash,role,ldap,is_active,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser is the input for Create.  Password is hashed before storage.
type NewUser struct {
	Username string
	FullName string
	Email    string
	Password string
	Role     model.Role
	LDAP     bool
}

// Create inserts an active user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	if !in.Role.Valid() {
		return 0, model.ErrUnknownRole
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, full_name, email, password_hash, role, ldap, is_active) VALUES (?,?,?,?,?,?,1)",
		normalizeUsername(in.Username), in.FullName, in.Email, hash, in.Role.String(), in.LDAP)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", normalizeUsername(username))
	return scanUser(row)
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var fullName, email sql.NullString
	err := row.Scan(&u.ID, &u.Username, &fullName, &email, &u.PasswordHash, &u.Role, &u.LDAP, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.FullName, u.Email = fullName.String, email.String
	return u, nil
}

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
