package models

import "time"

const (
	MinRating = 0
	MaxRating = 5
)

// CommentModel is a visitor comment attached to a page.
//
// Position is only meaningful while Approved is true: approved comments of
// one page hold the dense positions 1..N, unapproved ones hold nil.
// ApprovedAt is set if and only if Approved is true.
type CommentModel struct {
	Base
	PageID      string     `json:"page_id"      gorm:"type:char(36);not null;index:idx_comments_page_approved_position,priority:1"`
	Author      string     `json:"author"       gorm:"not null"`
	AuthorEmail string     `json:"author_email" gorm:"not null"`
	AuthorURL   string     `json:"author_url"`
	Content     string     `json:"content"      gorm:"type:text;not null"`
	ContentHTML string     `json:"content_html" gorm:"type:text"`
	FilterID    string     `json:"filter_id"    gorm:"type:varchar(64)"`
	Rating      *int       `json:"rating"`
	Approved    bool       `json:"approved"     gorm:"default:false;index:idx_comments_page_approved_position,priority:2"`
	ApprovedAt  *time.Time `json:"approved_at"`
	Position    *int       `json:"position"     gorm:"index:idx_comments_page_approved_position,priority:3"`
	MollomID    string     `json:"mollom_id"    gorm:"type:varchar(128)"`
	AuthorIP    string     `json:"author_ip"    gorm:"type:varchar(64)"`
	UserAgent   string     `json:"user_agent"   gorm:"type:varchar(512)"`
	Referrer    string     `json:"referrer"     gorm:"type:varchar(1024)"`
}

func (CommentModel) TableName() string { return "comments" }

// ApprovalStatus reports "approved" or "unapproved".
func (c *CommentModel) ApprovalStatus() string {
	if c.Approved {
		return "approved"
	}
	return "unapproved"
}
