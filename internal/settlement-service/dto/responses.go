package dto

import "github.com/radieske/scoreleague/internal/settlement-service/model"

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginResponse struct {
	User    *model.User `json:"user"`
	Created bool        `json:"created"`
}

type PlaceBetResponse struct {
	Bet  *model.Bet  `json:"bet"`
	User *model.User `json:"user"`
}
