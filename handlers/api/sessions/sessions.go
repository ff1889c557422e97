package sessions

import (
	"net/http"
	"sort"

	"github.com/go-chi/render"
)

type (
	// Presence reports connected participants per session.
	Presence interface {
		ActiveSessions() map[string]int
	}

	ActiveSession struct {
		ID    string `json:"id"`
		Users int    `json:"users"`
	}
)

// HandleListActive lists sessions with live collaborators, busiest first.
func HandleListActive(presence Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := presence.ActiveSessions()

		list := make([]ActiveSession, 0, len(active))
		for id, users := range active {
			list = append(list, ActiveSession{ID: id, Users: users})
		}

		sort.Slice(list, func(i, j int) bool {
			if list[i].Users == list[j].Users {
				return list[i].ID < list[j].ID
			}
			return list[i].Users > list[j].Users
		})

		render.JSON(w, r, list)
	}
}
