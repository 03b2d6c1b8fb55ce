package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
)

var sampleLobbies = []models.Lobby{
	{Host: "NightOwl", Game: "Valorant", Map: "Ascent", Mode: "Competitive", Rank: "Gold", Mic: true},
	{Host: "DropZone", Game: "Fortnite", Map: "Zero Build", Mode: "Ranked Zero Build", Rank: "Platinum"},
	{Host: "ChickenDinner", Game: "BGMI", Map: "Erangel", Mode: "Classic", Rank: "Ace", Mic: true},
	{Host: "BoomBox", Game: "Free Fire", Map: "Bermuda", Mode: "Clash Squad", Gender: "Female"},
}

// sampleSet returns fresh copies of sampleLobbies, newest first, created
// one minute apart ending at now.
func sampleSet(now time.Time) []*models.Lobby {
	out := make([]*models.Lobby, 0, len(sampleLobbies))
	for i, tmpl := range sampleLobbies {
		l := tmpl
		l.ID = uuid.NewString()
		l.CreatedAt = now.Add(-time.Duration(i) * time.Minute).UTC()
		l.Members = []models.Member{}
		if l.Gender == "" {
			l.Gender = "Any"
		}
		l.Status = models.StatusOpen
		out = append(out, &l)
	}
	return out
}

func seedLobbies(ctx context.Context, st store.LobbyStore, now time.Time) (int, error) {
	lobbies := sampleSet(now)
	for _, l := range lobbies {
		if err := st.Save(ctx, l); err != nil {
			return 0, fmt.Errorf("seed lobby %s: %w", l.Host, err)
		}
	}
	return len(lobbies), nil
}
