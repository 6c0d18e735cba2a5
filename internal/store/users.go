package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// User is an account record. Passwords are stored only as argon2id hashes.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists accounts in BadgerDB under "user:{username}" keys.
type UserStore struct {
	db *badger.DB
}

// NewUserStore wraps an open Badger handle.
func NewUserStore(db *badger.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser persists a new account and returns its generated id. Returns
// ErrUserExists when the username is already taken.
func (s *UserStore) CreateUser(username, firstname, lastname, passwordHash string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Firstname:    firstname,
		Lastname:     lastname,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}

	key := []byte("user:" + username)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// GetUser looks up an account by username. Returns ErrUserNotFound when no
// account exists.
func (s *UserStore) GetUser(username string) (User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + username))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}
