package api

import (
	"net/http"
	"time"

	"github.com/pders01/headlines/internal/news"
)

type profileView struct {
	ID          string               `json:"id"`
	Username    string               `json:"username"`
	Email       string               `json:"email"`
	Preferences news.UserPreferences `json:"preferences"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Store.GetUser(userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{"user": profileView{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Preferences: user.Preferences,
		CreatedAt:   user.CreatedAt,
	}}})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}

	user, err := s.deps.Store.UpdateProfile(userID(r), body.Username, body.Email)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message": "Profile updated successfully",
		"user": profileView{
			ID:          user.ID,
			Username:    user.Username,
			Email:       user.Email,
			Preferences: user.Preferences,
			CreatedAt:   user.CreatedAt,
		},
	}})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.deps.News.Preferences(userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{"preferences": prefs}})
}

// handleUpdatePreferences replaces the caller's preferences and drops the
// cached copy so the next headline request sees them.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preferences *news.UserPreferences `json:"preferences"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	if body.Preferences == nil {
		respondErr(w, r, news.NewValidationError("preferences", "is required"))
		return
	}

	uid := userID(r)
	prefs, err := s.deps.Store.UpdatePreferences(uid, *body.Preferences)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.deps.News.Invalidate(uid)

	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message":     "Preferences updated successfully",
		"preferences": prefs,
	}})
}
