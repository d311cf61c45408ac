package main

import (
	"database/sql"
	"strings"
	"sync"
)

// Store is the persistence boundary for the credential store and the
// profile registry. Profile lists keep insertion order; every adapter must
// serialize writers per user so add/delete/update cannot lose updates.
type Store interface {
	Init() error
	// Credential store
	CreateUser(username, passwordHash string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByID(id int64) (*User, error)
	// Profile registry
	ListProfiles(userID int64) ([]*Profile, error)
	AddProfile(userID int64, name string) (*Profile, error)
	DeleteProfile(userID, profileID int64) error
	UpdateProfile(userID, profileID int64, name, avatar *string) (*Profile, error)
}

// Memory store
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	byID     map[int64]*User
	profiles map[int64][]*Profile
	userSeq  int64
	profSeq  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    map[string]*User{},
		byID:     map[int64]*User{},
		profiles: map[int64][]*Profile{},
		userSeq:  1,
		profSeq:  1,
	}
}

func (m *MemStore) Init() error { return nil }

func (m *MemStore) CreateUser(username, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return nil, ErrDuplicateUser
	}
	u := &User{ID: m.userSeq, Username: username, Password: passwordHash}
	m.userSeq++
	m.users[username] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *MemStore) GetUserByUsername(username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *MemStore) GetUserByID(id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *MemStore) ListProfiles(userID int64) ([]*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.profiles[userID]
	out := make([]*Profile, len(list))
	copy(out, list)
	return out, nil
}

func (m *MemStore) AddProfile(userID int64, name string) (*Profile, error) {
	name, err := normalizeProfileName(name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[userID]; !ok {
		return nil, ErrNotFound
	}
	list := m.profiles[userID]
	if len(list) >= maxProfiles {
		return nil, ErrProfileLimit
	}
	p := &Profile{ID: m.profSeq, UserID: userID, Name: name, Avatar: avatarForCount(len(list))}
	m.profSeq++
	m.profiles[userID] = append(list, p)
	return p, nil
}

func (m *MemStore) DeleteProfile(userID, profileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.profiles[userID]
	for i, p := range list {
		if p.ID == profileID {
			m.profiles[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) UpdateProfile(userID, profileID int64, name, avatar *string) (*Profile, error) {
	var newName string
	if name != nil {
		n, err := normalizeProfileName(*name)
		if err != nil {
			return nil, err
		}
		newName = n
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles[userID] {
		if p.ID == profileID {
			if name != nil {
				p.Name = newName
			}
			if avatar != nil {
				p.Avatar = *avatar
			}
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// lifecycle helpers
func (m *MemStore) close() error { return nil }
func (m *MemStore) ping() bool   { return true }

// SQLite store
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite: a single connection avoids SQLITE_BUSY on
	// concurrent writers and keeps per-user writes serialized.
	d.SetMaxOpenConns(1)
	s := &SQLiteStore{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT UNIQUE NOT NULL, password TEXT NOT NULL, created_at TEXT);`,
		`CREATE TABLE IF NOT EXISTS profiles (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE, name TEXT NOT NULL, avatar TEXT NOT NULL, created_at TEXT);`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateUser(username, passwordHash string) (*User, error) {
	res, err := s.db.Exec(`INSERT INTO users(username,password,created_at) VALUES(?,?,datetime('now'))`, username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &User{ID: id, Username: username, Password: passwordHash}, nil
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,username,password FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	row := s.db.QueryRow(`SELECT id,username,password FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Password); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) ListProfiles(userID int64) ([]*Profile, error) {
	rows, err := s.db.Query(`SELECT id,user_id,name,avatar FROM profiles WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Avatar); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

func (s *SQLiteStore) AddProfile(userID int64, name string) (*Profile, error) {
	name, err := normalizeProfileName(name)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM profiles WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= maxProfiles {
		return nil, ErrProfileLimit
	}
	avatar := avatarForCount(count)
	res, err := tx.Exec(`INSERT INTO profiles(user_id,name,avatar,created_at) VALUES(?,?,?,datetime('now'))`, userID, name, avatar)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Profile{ID: id, UserID: userID, Name: name, Avatar: avatar}, nil
}

func (s *SQLiteStore) DeleteProfile(userID, profileID int64) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ? AND user_id = ?`, profileID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateProfile(userID, profileID int64, name, avatar *string) (*Profile, error) {
	if name != nil {
		n, err := normalizeProfileName(*name)
		if err != nil {
			return nil, err
		}
		name = &n
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p Profile
	err = tx.QueryRow(`SELECT id,user_id,name,avatar FROM profiles WHERE id = ? AND user_id = ?`, profileID, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Avatar)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if name != nil {
		p.Name = *name
	}
	if avatar != nil {
		p.Avatar = *avatar
	}
	if _, err := tx.Exec(`UPDATE profiles SET name = ?, avatar = ? WHERE id = ?`, p.Name, p.Avatar, p.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) close() error { return s.db.Close() }
func (s *SQLiteStore) ping() bool   { return s.db.Ping() == nil }
