package steam

// OwnedGames is the payload of IPlayerService/GetOwnedGames.
type OwnedGames struct {
	GameCount int         `json:"game_count"`
	Games     []OwnedGame `json:"games"`
}

type OwnedGame struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks,omitempty"`
}

type ownedGamesResponse struct {
	Response *OwnedGames `json:"response"`
}

// AppDetails is the storefront appdetails "data" object, trimmed to the
// fields the catalog consumes.
type AppDetails struct {
	Type             string       `json:"type"`
	Name             string       `json:"name"`
	SteamAppID       int          `json:"steam_appid"`
	IsFree           bool         `json:"is_free"`
	AboutTheGame     string       `json:"about_the_game"`
	ShortDescription string       `json:"short_description"`
	HeaderImage      string       `json:"header_image"`
	Platforms        Platforms    `json:"platforms"`
	Developers       []string     `json:"developers"`
	Publishers       []string     `json:"publishers"`
	Genres           []Genre      `json:"genres"`
	Screenshots      []Screenshot `json:"screenshots"`
	ReleaseDate      ReleaseDate  `json:"release_date"`
}

type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

type Genre struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type Screenshot struct {
	ID            int    `json:"id"`
	PathThumbnail string `json:"path_thumbnail"`
	PathFull      string `json:"path_full"`
}

type ReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

type appDetailsEntry struct {
	Success bool        `json:"success"`
	Data    *AppDetails `json:"data"`
}

// PlatformNames lists supported platforms in a fixed order.
func (d *AppDetails) PlatformNames() []string {
	out := []string{}
	if d.Platforms.Windows {
		out = append(out, "Windows")
	}
	if d.Platforms.Mac {
		out = append(out, "macOS")
	}
	if d.Platforms.Linux {
		out = append(out, "Linux")
	}
	return out
}

func (d *AppDetails) GenreNames() []string {
	out := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if g.Description != "" {
			out = append(out, g.Description)
		}
	}
	return out
}

func (d *AppDetails) ScreenshotURLs() []string {
	out := make([]string, 0, len(d.Screenshots))
	for _, s := range d.Screenshots {
		if s.PathFull != "" {
			out = append(out, s.PathFull)
		}
	}
	return out
}
