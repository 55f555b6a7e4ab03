package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"royaltyhub.org/internal/docstore"
)

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// User is an authenticated principal as stored in the users collection.
type User struct {
	ID                  string     `json:"id"`
	Internal            bool       `json:"internal"`
	ClientID            string     `json:"clientId,omitempty"`
	ParentID            string     `json:"parentId,omitempty"`
	PayeeID             string     `json:"payeeId,omitempty"`
	Email               string     `json:"email"`
	FirstName           string     `json:"firstName,omitempty"`
	LastName            string     `json:"lastName,omitempty"`
	Status              string     `json:"status"`
	Password            string     `json:"password,omitempty"`
	ForgotPasswordToken string     `json:"forgotPasswordToken,omitempty"`
	ForgotPasswordDate  *time.Time `json:"forgotPasswordDate,omitempty"`
	CreatedAt           string     `json:"createdAt,omitempty"`
	UpdatedAt           string     `json:"updatedAt,omitempty"`
}

// Public strips credential material before a user leaves the API.
func (u User) Public() User {
	u.Password = ""
	u.ForgotPasswordToken = ""
	u.ForgotPasswordDate = nil
	return u
}

func (u User) document() (docstore.Document, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	var d docstore.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	return d, nil
}

func userFromDocument(d docstore.Document) (User, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
