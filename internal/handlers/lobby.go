// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/moderation"
	"github.com/sirupsen/logrus"
)

const defaultGender = "Any"

var validStatuses = map[string]bool{
	models.StatusOpen:   true,
	models.StatusFull:   true,
	models.StatusInGame: true,
}

type createLobbyRequest struct {
	Host        string `json:"host"`
	Game        string `json:"game"`
	Map         string `json:"map"`
	Mode        string `json:"mode"`
	Rank        string `json:"rank"`
	Gender      string `json:"gender"`
	Mic         bool   `json:"mic"`
	Status      string `json:"status"`
	DiscordLink string `json:"discordLink"`
}

// missing returns the names of required fields left blank.
func (req *createLobbyRequest) missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"host", req.Host},
		{"game", req.Game},
		{"map", req.Map},
		{"mode", req.Mode},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}

func (req *createLobbyRequest) lobby(now time.Time) *models.Lobby {
	l := &models.Lobby{
		ID:          uuid.NewString(),
		Host:        strings.TrimSpace(req.Host),
		Game:        strings.TrimSpace(req.Game),
		Map:         strings.TrimSpace(req.Map),
		Mode:        strings.TrimSpace(req.Mode),
		Rank:        strings.TrimSpace(req.Rank),
		Gender:      strings.TrimSpace(req.Gender),
		Mic:         req.Mic,
		Status:      req.Status,
		DiscordLink: strings.TrimSpace(req.DiscordLink),
		CreatedAt:   now.UTC(),
		Members:     []models.Member{},
	}
	if l.Gender == "" {
		l.Gender = defaultGender
	}
	if l.Status == "" {
		l.Status = models.StatusOpen
	}
	return l
}

// CreateLobbyHandler stores a new lobby and announces it with lobby_created
// to every open socket.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req createLobbyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	req.Game = strings.TrimSpace(req.Game)
	req.Map = strings.TrimSpace(req.Map)
	req.Mode = strings.TrimSpace(req.Mode)
	if missing := req.missing(); len(missing) > 0 {
		http.Error(w, "missing required fields: "+strings.Join(missing, ", "), http.StatusBadRequest)
		return
	}
	if req.Status != "" && !validStatuses[req.Status] {
		http.Error(w, "invalid lobby status", http.StatusBadRequest)
		return
	}

	l := req.lobby(time.Now())
	if s.Scorer.IsRejected(l.ModerationText()) {
		s.Logger.WithField("host", l.Host).Info("create lobby: rejected by moderation")
		http.Error(w, "lobby rejected by moderation", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	if err := s.Store.Save(ctx, l); err != nil {
		s.Logger.WithField("lobby", l.ID).Errorf("create lobby: %v", err)
		http.Error(w, "could not save lobby", http.StatusServiceUnavailable)
		return
	}

	n := s.Hub.AnnounceLobbyCreated(l)
	s.Logger.WithFields(logrus.Fields{"lobby": l.ID, "host": l.Host}).Infof("Lobby created, announced to %d connections", n)
	writeJSON(w, http.StatusCreated, l)
}

// scoredLobby is a lobby annotated with its match score for a search query.
type scoredLobby struct {
	*models.Lobby
	Score float64 `json:"score"`
}

// ListLobbiesHandler returns lobbies newest first. With ?q= the lobbies are
// ranked by similarity to the query instead, best match first.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()
	lobbies, err := s.Store.Find(ctx)
	if err != nil {
		s.Logger.Errorf("list lobbies: %v", err)
		http.Error(w, "could not load lobbies", http.StatusServiceUnavailable)
		return
	}
	for _, l := range lobbies {
		if l.Members == nil {
			l.Members = []models.Member{}
		}
	}
	if lobbies == nil {
		lobbies = []*models.Lobby{}
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, lobbies)
		return
	}
	writeJSON(w, http.StatusOK, rankLobbies(s.Scorer, q, lobbies))
}

// rankLobbies scores every lobby against q. Ties keep the newest-first order.
func rankLobbies(scorer moderation.Scorer, q string, lobbies []*models.Lobby) []scoredLobby {
	out := make([]scoredLobby, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, scoredLobby{Lobby: l, Score: scorer.Similarity(q, l.SearchText())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
