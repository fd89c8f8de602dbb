package sources

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/models"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ParamSet names the query parameters of one API encoding.
type ParamSet struct {
	Game string `yaml:"game"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Source is one upstream entry of the catalog. Its game ids, parameter sets and
// date formats expand into concrete variants.
type Source struct {
	Name        string     `yaml:"name"`
	Mode        string     `yaml:"mode"`
	Accept      string     `yaml:"accept"`
	URL         string     `yaml:"url"`
	ListingURL  string     `yaml:"listing_url"`
	GameIDs     []string   `yaml:"game_ids"`
	ParamSets   []ParamSet `yaml:"param_sets"`
	DateFormats []string   `yaml:"date_formats"`
	PerDate     bool       `yaml:"per_date"`
	MaxPages    int        `yaml:"max_pages"`
}

// Catalog is the ordered list of sources per game.
type Catalog struct {
	Games map[string][]Source `yaml:"games"`

	byGame map[models.Game][]Source
}

// Load reads a catalog file. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	data := embeddedCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}

	c.byGame = make(map[models.Game][]Source, len(c.Games))
	for name, list := range c.Games {
		game, err := models.ParseGame(name)
		if err != nil {
			return nil, fmt.Errorf("sources: %w", err)
		}
		if _, dup := c.byGame[game]; dup {
			return nil, fmt.Errorf("sources: %s is listed under more than one key", game)
		}
		for i, s := range list {
			if err := s.validate(); err != nil {
				return nil, fmt.Errorf("sources: %s[%d]: %w", game, i, err)
			}
		}
		c.byGame[game] = list
	}
	return &c, nil
}

func (s Source) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if s.URL == "" {
		return fmt.Errorf("%s: missing url", s.Name)
	}
	if _, err := fetch.ParseMode(s.Mode); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	switch fetch.Accept(s.Accept) {
	case "", fetch.AcceptHTML, fetch.AcceptJSON:
	default:
		return fmt.Errorf("%s: unknown accept %q", s.Name, s.Accept)
	}
	if s.PerDate && !strings.Contains(s.URL, "{YYYY}") {
		return fmt.Errorf("%s: per_date source without {YYYY} placeholder", s.Name)
	}
	return nil
}

// Sources returns the sources configured for a game, in order.
func (c *Catalog) Sources(game models.Game) []Source {
	return c.byGame[game]
}

// Variant is one concrete way of asking a source for a window.
type Variant struct {
	ID       string
	Source   string
	Mode     fetch.Mode
	Accept   fetch.Accept
	URL      string
	Referer  string
	MaxPages int
	// PerDate variants keep {YYYY}/{MM}/{DD} in URL; see ForDate.
	PerDate bool
}

// Request builds the fetch request of a window variant.
func (v Variant) Request() fetch.Request {
	return fetch.Request{
		Mode:     v.Mode,
		URL:      v.URL,
		Referer:  v.Referer,
		Accept:   v.Accept,
		MaxPages: v.MaxPages,
	}
}

// ForDate builds the fetch request of a per-date variant for one day.
func (v Variant) ForDate(d models.Date) fetch.Request {
	req := v.Request()
	req.URL = strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", d.Year()),
		"{MM}", fmt.Sprintf("%02d", int(d.Month())),
		"{DD}", fmt.Sprintf("%02d", d.Day()),
	).Replace(v.URL)
	return req
}

// Expand returns every variant of game for window in catalog order: sources,
// then game ids, then parameter sets, then date formats. Variants resolving
// to the same URL are listed once.
func (c *Catalog) Expand(game models.Game, window models.Window) []Variant {
	var out []Variant
	seen := make(map[string]bool)

	for _, s := range c.Sources(game) {
		mode, _ := fetch.ParseMode(s.Mode)
		accept := fetch.Accept(s.Accept)
		if accept == "" {
			accept = fetch.AcceptHTML
		}

		ids := s.GameIDs
		if len(ids) == 0 {
			ids = []string{""}
		}
		params := s.ParamSets
		if len(params) == 0 {
			params = []ParamSet{{Game: "game_id", From: "fechaInicioInclusiva", To: "fechaFinInclusiva"}}
		}
		formats := s.DateFormats
		if len(formats) == 0 {
			formats = []string{"20060102"}
		}

		for _, id := range ids {
			for _, p := range params {
				for _, layout := range formats {
					resolved := strings.NewReplacer(
						"{game_param}", p.Game,
						"{from_param}", p.From,
						"{to_param}", p.To,
						"{game_id}", url.QueryEscape(id),
						"{from}", window.From.Format(layout),
						"{to}", window.To.Format(layout),
					).Replace(s.URL)
					if seen[s.Name+" "+resolved] {
						continue
					}
					seen[s.Name+" "+resolved] = true

					out = append(out, Variant{
						ID:       variantID(s, id, p, layout),
						Source:   s.Name,
						Mode:     mode,
						Accept:   accept,
						URL:      resolved,
						Referer:  s.ListingURL,
						MaxPages: s.MaxPages,
						PerDate:  s.PerDate,
					})
				}
			}
		}
	}
	return out
}

func variantID(s Source, id string, p ParamSet, layout string) string {
	var parts []string
	if strings.Contains(s.URL, "{game_id}") && id != "" {
		parts = append(parts, id)
	}
	if strings.Contains(s.URL, "{from_param}") {
		parts = append(parts, p.From)
	}
	if len(s.DateFormats) > 1 {
		parts = append(parts, layout)
	}
	if len(parts) == 0 {
		return s.Name
	}
	return s.Name + "[" + strings.Join(parts, ",") + "]"
}

// DrawDays lists the days of window the game is normally drawn on.
func DrawDays(game models.Game, window models.Window) []models.Date {
	rules := models.RulesFor(game)
	var out []models.Date
	for _, d := range window.Days() {
		if rules.IsDrawDay(d.Time) {
			out = append(out, d)
		}
	}
	return out
}

// Neighbours returns d, d-1 and d+1: the days probed for a draw that moved.
func Neighbours(d models.Date) []models.Date {
	return []models.Date{d, d.AddDays(-1), d.AddDays(1)}
}
