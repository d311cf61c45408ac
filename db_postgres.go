package main

import (
	"database/sql"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Init() error {
	// tables come from migrations; just verify connectivity
	return p.db.Ping()
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func (p *PostgresStore) CreateUser(username, passwordHash string) (*User, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO users(username,password,created_at) VALUES($1,$2,now()) RETURNING id`, username, passwordHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return &User{ID: id, Username: username, Password: passwordHash}, nil
}

func (p *PostgresStore) GetUserByUsername(username string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,username,password FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (p *PostgresStore) GetUserByID(id int64) (*User, error) {
	row := p.db.QueryRow(`SELECT id,username,password FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (p *PostgresStore) ListProfiles(userID int64) ([]*Profile, error) {
	rows, err := p.db.Query(`SELECT id,user_id,name,avatar FROM profiles WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []*Profile
	for rows.Next() {
		var pr Profile
		if err := rows.Scan(&pr.ID, &pr.UserID, &pr.Name, &pr.Avatar); err != nil {
			return nil, err
		}
		profiles = append(profiles, &pr)
	}
	return profiles, rows.Err()
}

func (p *PostgresStore) AddProfile(userID int64, name string) (*Profile, error) {
	name, err := normalizeProfileName(name)
	if err != nil {
		return nil, err
	}
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Row lock on the owning user serializes concurrent writers of one
	// user's profile list, keeping the count/insert pair consistent.
	var ownerID int64
	err = tx.QueryRow(`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM profiles WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= maxProfiles {
		return nil, ErrProfileLimit
	}
	avatar := avatarForCount(count)
	var id int64
	err = tx.QueryRow(`INSERT INTO profiles(user_id,name,avatar,created_at) VALUES($1,$2,$3,now()) RETURNING id`, userID, name, avatar).Scan(&id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Profile{ID: id, UserID: userID, Name: name, Avatar: avatar}, nil
}

func (p *PostgresStore) DeleteProfile(userID, profileID int64) error {
	res, err := p.db.Exec(`DELETE FROM profiles WHERE id = $1 AND user_id = $2`, profileID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateProfile(userID, profileID int64, name, avatar *string) (*Profile, error) {
	if name != nil {
		n, err := normalizeProfileName(*name)
		if err != nil {
			return nil, err
		}
		name = &n
	}
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var pr Profile
	err = tx.QueryRow(`SELECT id,user_id,name,avatar FROM profiles WHERE id = $1 AND user_id = $2 FOR UPDATE`, profileID, userID).
		Scan(&pr.ID, &pr.UserID, &pr.Name, &pr.Avatar)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if name != nil {
		pr.Name = *name
	}
	if avatar != nil {
		pr.Avatar = *avatar
	}
	if _, err := tx.Exec(`UPDATE profiles SET name = $1, avatar = $2 WHERE id = $3`, pr.Name, pr.Avatar, pr.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (p *PostgresStore) close() error { return p.db.Close() }
func (p *PostgresStore) ping() bool   { return p.db.Ping() == nil }
