package igdb

import (
	"strconv"
	"strings"
	"time"
)

type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	Cover             *Image            `json:"cover,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	TotalRating       *float64          `json:"total_rating,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	Platforms         []Named           `json:"platforms,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
}

type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type InvolvedCompany struct {
	Company   Named `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

func (g *Game) IDString() string {
	return strconv.FormatInt(g.ID, 10)
}

// CoverURL returns the cover upgraded from the thumbnail size, or "".
func (g *Game) CoverURL() string {
	if g.Cover == nil || g.Cover.URL == "" {
		return ""
	}
	return imageURL(g.Cover.URL, "t_cover_big")
}

func (g *Game) ScreenshotURLs() []string {
	out := make([]string, 0, len(g.Screenshots))
	for _, s := range g.Screenshots {
		if s.URL != "" {
			out = append(out, imageURL(s.URL, "t_screenshot_huge"))
		}
	}
	return out
}

func (g *Game) GenreNames() []string    { return names(g.Genres) }
func (g *Game) PlatformNames() []string { return names(g.Platforms) }

func (g *Game) Developers() []string {
	out := []string{}
	for _, c := range g.InvolvedCompanies {
		if c.Developer && c.Company.Name != "" {
			out = append(out, c.Company.Name)
		}
	}
	return out
}

func (g *Game) Publishers() []string {
	out := []string{}
	for _, c := range g.InvolvedCompanies {
		if c.Publisher && c.Company.Name != "" {
			out = append(out, c.Company.Name)
		}
	}
	return out
}

// ReleaseDate converts first_release_date (Unix seconds); zero is absent.
func (g *Game) ReleaseDate() *time.Time {
	if g.FirstReleaseDate == 0 {
		return nil
	}
	t := time.Unix(g.FirstReleaseDate, 0).UTC()
	return &t
}

func names(in []Named) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

// imageURL swaps the size token and adds a scheme to protocol-relative URLs.
func imageURL(u, size string) string {
	u = strings.Replace(u, "t_thumb", size, 1)
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}
