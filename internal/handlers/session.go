package handlers

import "net/http"

// SessionHandler issues or refreshes the guest identity cookie and returns the
// user id it carries. Clients use it as user.userId in join_lobby.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.Sessions.EnsureGuestUser(w, r)
	if err != nil {
		s.Logger.Errorf("session: %v", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}
