package auth

import "time"

type RegisterRequest struct {
	Email     string    `json:"email" binding:"required,email"`
	Password  string    `json:"password" binding:"required,min=8"`
	Name      string    `json:"name" binding:"required,max=128"`
	Gender    string    `json:"gender" binding:"required,oneof=male female"`
	BirthDate time.Time `json:"birth_date" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
