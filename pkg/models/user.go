package models

import (
	"time"
)

// User is keyed externally by the identity provider's subject id.
type User struct {
	ID                string    `json:"_id"`
	ExternalSubjectID string    `json:"externalSubjectId"`
	Email             string    `json:"email"`
	CreatedAt         time.Time `json:"createdAt"`
}

type NewUser struct {
	ExternalSubjectID string `json:"externalSubjectId" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
}
