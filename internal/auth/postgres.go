package auth

import (
	"context"
	"database/sql"
)

var _ UserStore = (*PGStore)(nil)

// PGStore implements UserStore over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, role, password_hash, status, created_at, updated_at from users where id=$1`, id)
	return scanUser(ctx, s.db, row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, role, password_hash, status, created_at, updated_at from users where email=$1`, email)
	return scanUser(ctx, s.db, row)
}

func (s *PGStore) RolePermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select permission from role_permissions where role=$1 order by permission`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) UpdateRole(ctx context.Context, userID, role string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set role=$2, updated_at=now() where id=$1`, userID, role)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(ctx context.Context, db *sql.DB, row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`select permission from user_custom_permissions where user_id=$1 order by permission`, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		u.CustomPermissions = append(u.CustomPermissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}
