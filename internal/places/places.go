// Package places is the region name-lookup table: municipality ID to display
// name. Names are not authoritative on region records; they are resolved
// here when a record is first created.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Place is one entry of the table.
type Place struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Catalog is an immutable lookup table. It is safe for concurrent use.
type Catalog struct {
	places []Place // sorted by folded name
	folded []string
	byID   map[string]string
}

// New builds a Catalog. Entries with a blank ID or name are dropped; later
// duplicates of an ID win.
func New(list []Place) *Catalog {
	byID := make(map[string]string, len(list))
	for _, p := range list {
		id, name := strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
		if id == "" || name == "" {
			continue
		}
		byID[id] = name
	}

	c := &Catalog{byID: byID}
	for id, name := range byID {
		c.places = append(c.places, Place{ID: id, Name: name})
	}
	sort.Slice(c.places, func(i, j int) bool {
		fi, fj := Fold(c.places[i].Name), Fold(c.places[j].Name)
		if fi != fj {
			return fi < fj
		}
		return c.places[i].ID < c.places[j].ID
	})
	c.folded = make([]string, len(c.places))
	for i, p := range c.places {
		c.folded[i] = Fold(p.Name)
	}
	return c
}

// Name returns the display name for id.
func (c *Catalog) Name(id string) (string, bool) {
	name, ok := c.byID[id]
	return name, ok
}

// Len reports how many places the catalog holds.
func (c *Catalog) Len() int {
	return len(c.places)
}

// Search returns places whose name contains query, ignoring case and
// accents, so "sao gabriel" finds "São Gabriel da Cachoeira". Names that
// start with the query come first. limit <= 0 means no limit.
func (c *Catalog) Search(query string, limit int) []Place {
	q := Fold(query)
	var prefix, inner []Place
	for i, f := range c.folded {
		switch {
		case strings.HasPrefix(f, q):
			prefix = append(prefix, c.places[i])
		case strings.Contains(f, q):
			inner = append(inner, c.places[i])
		}
	}
	out := append(prefix, inner...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Place{}
	}
	return out
}

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// LoadYAML reads a catalog from a YAML list of {id, name} entries.
func LoadYAML(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("places.LoadYAML: %w", err)
	}
	var list []Place
	if err := yaml.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("places.LoadYAML: %s: %w", path, err)
	}
	return New(list), nil
}

// ibgeMunicipality is one element of the IBGE localidades response.
// Only the fields used here are decoded.
type ibgeMunicipality struct {
	ID   json.Number `json:"id"`
	Nome string      `json:"nome"`
}

// FetchIBGE downloads a state's municipality list from the IBGE localidades
// API, e.g. https://servicodados.ibge.gov.br/api/v1/localidades/estados/13/municipios.
func FetchIBGE(ctx context.Context, client *http.Client, url string) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("places.FetchIBGE: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places.FetchIBGE: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("places.FetchIBGE: unexpected status %d", resp.StatusCode)
	}

	var raw []ibgeMunicipality
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("places.FetchIBGE: decode: %w", err)
	}
	list := make([]Place, 0, len(raw))
	for _, m := range raw {
		id := m.ID.String()
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			continue
		}
		list = append(list, Place{ID: id, Name: m.Nome})
	}
	return New(list), nil
}
