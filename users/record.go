package users

import (
	"encoding/json"
	"fmt"
)

// Record is a stored user. HashedPassword is an opaque digest.
type Record struct {
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	HashedPassword string `json:"hashed_password"`
	Disabled       bool   `json:"disabled"`
}

// Patch lists the mutable fields; nil means unchanged.
type Patch struct {
	Email          *string
	FullName       *string
	HashedPassword *string
	Disabled       *bool
}

func (p Patch) apply(r *Record) {
	if p.Email != nil {
		r.Email = *p.Email
	}
	if p.FullName != nil {
		r.FullName = *p.FullName
	}
	if p.HashedPassword != nil {
		r.HashedPassword = *p.HashedPassword
	}
	if p.Disabled != nil {
		r.Disabled = *p.Disabled
	}
}

func (r *Record) validate() error {
	if r.Username == "" {
		return fmt.Errorf("%w: missing username", ErrMalformed)
	}
	if r.HashedPassword == "" {
		return fmt.Errorf("%w: missing hashed_password", ErrMalformed)
	}
	return nil
}

func encode(r *Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

func decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
