package igdb

import (
	"fmt"
	"strings"
	"time"
)

const gameFields = "fields name, summary, cover.url, first_release_date, total_rating, " +
	"genres.name, platforms.name, screenshots.url, " +
	"involved_companies.company.name, involved_companies.developer, involved_companies.publisher;"

// websiteCategorySteam is the IGDB websites.category value for Steam store pages.
const websiteCategorySteam = 13

func searchQuery(name string) string {
	return fmt.Sprintf(`%s search "%s"; where cover.url != null & summary != null; limit 20;`,
		gameFields, escape(name))
}

func featuredQuery(since time.Time) string {
	return fmt.Sprintf("%s where first_release_date > %d & total_rating > 80 & total_rating_count > 50"+
		" & cover.url != null & screenshots.url != null; sort total_rating desc; limit 15;",
		gameFields, since.Unix())
}

func steamAppQuery(appID string) string {
	return fmt.Sprintf(`%s where websites.category = %d & websites.url ~ *"/app/%s"; limit 1;`,
		gameFields, websiteCategorySteam, appID)
}

func idQuery(id string) string {
	return fmt.Sprintf("%s where id = %s; limit 1;", gameFields, id)
}

// escape keeps a search term inside its quoted APICalypse string.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
