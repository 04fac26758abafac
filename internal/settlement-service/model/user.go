package model

import "time"

// InitialCoins é o saldo concedido no primeiro login
const InitialCoins int64 = 1000

// Stats acumula contadores do usuário
type Stats struct {
	TotalBets     int64 `json:"totalBets"`
	TotalWinnings int64 `json:"totalWinnings"`
	BiggestWin    int64 `json:"biggestWin"`
}

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Coins    int64     `json:"coins"`
	Stats    Stats     `json:"stats"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
