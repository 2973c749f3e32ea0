package domain

import "time"

// Post is a published blog entry shown on the news page.
type Post struct {
	ID            string
	Title         string
	Content       string
	CoverImageURL string
	AuthorID      string
	AuthorName    string
	CreatedAt     time.Time
}

// Product is a single catalogue entry shown on the shop grid.
type Product struct {
	ID          string
	Name        string
	Price       float64
	Description string
	ImageURL    string
	CreatedAt   time.Time
}

// GalleryImage is a stored photo served through the image host.
type GalleryImage struct {
	PublicID     string
	Format       string
	URL          string
	ThumbnailURL string
	CreatedAt    time.Time
}
