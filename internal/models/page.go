package models

// PageModel is the content page comments belong to. The moderation engine
// only reads it: positions are scoped per page and the page row is the lock
// that serializes position changes.
type PageModel struct {
	Base
	Title        string `json:"title"         gorm:"not null"`
	Slug         string `json:"slug"          gorm:"uniqueIndex;type:varchar(191)"`
	URL          string `json:"url"           gorm:"type:varchar(1024)"`
	AllowComment bool   `json:"allow_comment"`
}

func (PageModel) TableName() string { return "pages" }
