package model

import "time"

// DefaultLeagueMaxMembers limita o tamanho de ligas privadas
const DefaultLeagueMaxMembers = 10

type League struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	InviteCode  string    `json:"inviteCode"`
	Members     []string  `json:"members"`
	MaxMembers  int       `json:"maxMembers"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (l *League) HasMember(userID string) bool {
	for _, m := range l.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (l *League) Clone() *League {
	if l == nil {
		return nil
	}
	c := *l
	c.Members = append([]string(nil), l.Members...)
	return &c
}
