package comment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mx-space/moderation/internal/models"
)

const SelectedCommentCookie = "selected_comment"

var (
	errCommentNotFound  = errors.New("comment not found")
	errPageNotFound     = errors.New("page not found")
	errCommentsDisabled = errors.New("comments are disabled on this page")
)

// ValidationError maps submitted field names to messages. Nothing is
// persisted when a submission fails validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "invalid comment: " + strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

// RatingInput accepts a rating as a JSON number, a string or null and keeps
// the raw text for validation.
type RatingInput string

func (r *RatingInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RatingInput(s)
		return nil
	}
	*r = RatingInput(data)
	return nil
}

type CreateCommentDTO struct {
	Author          string      `json:"author"            form:"author"`
	AuthorEmail     string      `json:"author_email"      form:"author_email"`
	AuthorURL       string      `json:"author_url"        form:"author_url"`
	Content         string      `json:"content"           form:"content"`
	FilterID        string      `json:"filter_id"         form:"filter_id"`
	Rating          RatingInput `json:"rating"            form:"rating"`
	SpamAnswer      string      `json:"spam_answer"       form:"spam_answer"`
	ValidSpamAnswer string      `json:"valid_spam_answer" form:"valid_spam_answer"`
}

// Provenance is captured from the request at creation and never updated.
type Provenance struct {
	IP        string
	UserAgent string
	Referrer  string
}

type commentResponse struct {
	ID          string     `json:"id"`
	PageID      string     `json:"page_id"`
	Author      string     `json:"author"`
	AuthorEmail string     `json:"author_email,omitempty"`
	AuthorURL   string     `json:"author_url"`
	Content     string     `json:"content"`
	ContentHTML string     `json:"content_html"`
	FilterID    string     `json:"filter_id,omitempty"`
	Rating      *int       `json:"rating"`
	Approved    bool       `json:"approved"`
	Status      string     `json:"status"`
	ApprovedAt  *time.Time `json:"approved_at"`
	Position    *int       `json:"position"`
	AuthorIP    string     `json:"author_ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	Referrer    string     `json:"referrer,omitempty"`
	Created     time.Time  `json:"created"`
	Modified    time.Time  `json:"modified"`
}

func toResponse(c *models.CommentModel, isAdmin bool) commentResponse {
	r := commentResponse{
		ID: c.ID, PageID: c.PageID,
		Author: c.Author, AuthorURL: c.AuthorURL,
		Content: c.Content, ContentHTML: c.ContentHTML, FilterID: c.FilterID,
		Rating: c.Rating, Approved: c.Approved, Status: c.ApprovalStatus(),
		ApprovedAt: c.ApprovedAt, Position: c.Position,
		Created: c.CreatedAt, Modified: c.UpdatedAt,
	}
	if isAdmin {
		r.AuthorEmail = c.AuthorEmail
		r.AuthorIP = c.AuthorIP
		r.UserAgent = c.UserAgent
		r.Referrer = c.Referrer
	}
	return r
}

func toResponses(list []models.CommentModel, isAdmin bool) []commentResponse {
	out := make([]commentResponse, len(list))
	for i := range list {
		out[i] = toResponse(&list[i], isAdmin)
	}
	return out
}
