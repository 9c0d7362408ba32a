// internal/models/content.go
package models

import "time"

type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
)

// Article - новость на сайте.
type Article struct {
	ID          int64         `json:"id"`
	Slug        string        `json:"slug"`
	Locale      string        `json:"locale"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Body        string        `json:"body,omitempty"`
	Status      ArticleStatus `json:"status"`
	AuthorID    *int64        `json:"author_id,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ArticleForm struct {
	Slug    string `form:"slug" validate:"required,slug,max=160"`
	Locale  string `form:"locale" validate:"required,oneof=ru kk en"`
	Title   string `form:"title" validate:"required,max=255"`
	Summary string `form:"summary" validate:"max=500"`
	Body    string `form:"body" validate:"required"`
	Publish bool   `form:"publish"`
}

// Page - статическая CMS-страница (о компании, условия, политика).
type Page struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Locale      string    `json:"locale"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	IsPublished bool      `json:"is_published"`
	UpdatedBy   *int64    `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PageForm struct {
	Slug        string `form:"slug" validate:"required,slug,max=160"`
	Locale      string `form:"locale" validate:"required,oneof=ru kk en"`
	Title       string `form:"title" validate:"required,max=255"`
	Body        string `form:"body" validate:"required"`
	IsPublished bool   `form:"is_published"`
}
