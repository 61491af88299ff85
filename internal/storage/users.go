package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/pders01/headlines/internal/news"
)

// CreateUser registers a user with a unique username.
func (s *Store) CreateUser(username, email string, prefs news.UserPreferences) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := news.ValidatePreferences(prefs); err != nil {
		return nil, err
	}

	now := s.now()
	user := &User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       email,
		Preferences: prefs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := claimIndex(tx.Bucket(usernamesBucket), strings.ToLower(username), user.ID, ErrUsernameTaken); err != nil {
			return err
		}
		if email != "" {
			if err := claimIndex(tx.Bucket(emailsBucket), email, user.ID, ErrEmailTaken); err != nil {
				return err
			}
		}
		return putRecord(tx.Bucket(usersBucket), user.ID, user)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUser(id string) (*User, error) {
	var user User
	err := s.db.View(func(tx *bolt.Tx) error {
		return getRecord(tx.Bucket(usersBucket), id, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername resolves a username case-insensitively.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	var user User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(usernamesBucket).Get([]byte(strings.ToLower(strings.TrimSpace(username))))
		if id == nil {
			return ErrNotFound
		}
		return getRecord(tx.Bucket(usersBucket), string(id), &user)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return &user, nil
}

// GetPreferences returns the stored preferences. A user without a record has
// empty preferences.
func (s *Store) GetPreferences(userID string) (news.UserPreferences, error) {
	user, err := s.GetUser(userID)
	if errors.Is(err, ErrNotFound) {
		return news.UserPreferences{}, nil
	}
	if err != nil {
		return news.UserPreferences{}, err
	}
	return user.Preferences, nil
}

// UpdatePreferences validates and replaces the user's preferences, creating
// the user record on first write.
func (s *Store) UpdatePreferences(userID string, prefs news.UserPreferences) (news.UserPreferences, error) {
	if err := news.ValidatePreferences(prefs); err != nil {
		return news.UserPreferences{}, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		now := s.now()

		var user User
		switch err := getRecord(b, userID, &user); {
		case errors.Is(err, ErrNotFound):
			user = User{ID: userID, CreatedAt: now}
		case err != nil:
			return err
		}

		user.Preferences = prefs
		user.UpdatedAt = now
		return putRecord(b, userID, &user)
	})
	if err != nil {
		return news.UserPreferences{}, fmt.Errorf("updating preferences: %w", err)
	}
	return prefs, nil
}

// UpdateProfile changes username and/or email; empty values are left alone.
func (s *Store) UpdateProfile(userID, username, email string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return nil, news.NewValidationError("profile", "no valid fields to update")
	}
	if username != "" {
		if err := validateUsername(username); err != nil {
			return nil, err
		}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	var user User
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if err := getRecord(b, userID, &user); err != nil {
			return err
		}

		if username != "" && !strings.EqualFold(username, user.Username) {
			names := tx.Bucket(usernamesBucket)
			if err := claimIndex(names, strings.ToLower(username), userID, ErrUsernameTaken); err != nil {
				return err
			}
			if user.Username != "" {
				if err := names.Delete([]byte(strings.ToLower(user.Username))); err != nil {
					return err
				}
			}
		}
		if username != "" {
			user.Username = username
		}

		if email != "" && email != user.Email {
			emails := tx.Bucket(emailsBucket)
			if err := claimIndex(emails, email, userID, ErrEmailTaken); err != nil {
				return err
			}
			if user.Email != "" {
				if err := emails.Delete([]byte(user.Email)); err != nil {
					return err
				}
			}
			user.Email = email
		}

		user.UpdatedAt = s.now()
		return putRecord(b, userID, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return &user, nil
}

func claimIndex(b *bolt.Bucket, key, id string, taken error) error {
	if owner := b.Get([]byte(key)); owner != nil && string(owner) != id {
		return taken
	}
	return b.Put([]byte(key), []byte(id))
}

var validate = validator.New()

func validateUsername(username string) error {
	if validate.Var(username, "min=3,max=30") != nil || strings.ContainsAny(username, "/ \t") {
		return news.NewValidationError("username", "must be 3 to 30 characters without spaces or slashes")
	}
	return nil
}

func validateEmail(email string) error {
	if validate.Var(email, "omitempty,email") != nil {
		return news.NewValidationError("email", "must be a valid email address")
	}
	return nil
}
