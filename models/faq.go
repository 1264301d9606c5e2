package models

import (
	"fmt"
	"strings"
	"time"
)

// Faq is global when PillarID is nil, otherwise scoped to exactly one pillar.
type Faq struct {
	ID         int64     `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	PillarID   *int64    `json:"pillar_id"`
	PillarSlug *string   `json:"pillar_slug,omitempty"`
	SortOrder  int       `json:"sort_order"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (f *Faq) IsGlobal() bool {
	return f.PillarID == nil
}

// FaqFilter selects FAQs. PillarSlug and GlobalOnly are mutually exclusive.
type FaqFilter struct {
	PillarSlug      string
	GlobalOnly      bool
	IncludeInactive bool
}

type FaqRequest struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	PillarID  *int64 `json:"pillar_id"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active"`
}

func (r *FaqRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	r.Answer = strings.TrimSpace(r.Answer)
	if r.Question == "" {
		return fmt.Errorf("question is required")
	}
	if r.Answer == "" {
		return fmt.Errorf("answer is required")
	}
	if r.PillarID != nil && *r.PillarID <= 0 {
		return fmt.Errorf("pillar_id is invalid")
	}
	return nil
}
