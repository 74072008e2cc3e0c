package places_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/places"
)

func catalog() *places.Catalog {
	return places.New([]places.Place{
		{ID: "1302603", Name: "Manaus"},
		{ID: "1303809", Name: "São Gabriel da Cachoeira"},
		{ID: "1303908", Name: "São Paulo de Olivença"},
		{ID: "1300144", Name: "Apuí"},
		{ID: "1302504", Name: "Manacapuru"},
		{ID: "", Name: "dropped"},
	})
}

func TestCatalog_Name(t *testing.T) {
	c := catalog()

	name, ok := c.Name("1300144")
	assert.True(t, ok)
	assert.Equal(t, "Apuí", name)

	_, ok = c.Name("0000000")
	assert.False(t, ok)
	assert.Equal(t, 5, c.Len())
}

func TestCatalog_Search(t *testing.T) {
	c := catalog()

	tests := []struct {
		query string
		want  []string
	}{
		{"sao", []string{"1303809", "1303908"}},
		{"  SÃO gabriel", []string{"1303809"}},
		{"apui", []string{"1300144"}},
		// Prefix matches come before inner matches.
		{"man", []string{"1302504", "1302603"}},
		{"cachoeira", []string{"1303809"}},
		{"zzz", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := []string{}
			for _, p := range c.Search(tc.query, 0) {
				got = append(got, p.ID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCatalog_Search_limit(t *testing.T) {
	assert.Len(t, catalog().Search("", 2), 2)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "sao paulo de olivenca", places.Fold(" São Paulo de Olivença "))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: "1302603"
  name: Manaus
- id: "1301209"
  name: Coari
`), 0o600))

	c, err := places.LoadYAML(path)

	require.NoError(t, err)
	name, ok := c.Name("1301209")
	assert.True(t, ok)
	assert.Equal(t, "Coari", name)
}

func TestLoadYAML_missingFile(t *testing.T) {
	_, err := places.LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFetchIBGE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/localidades/estados/13/municipios", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1302603, "nome": "Manaus", "microrregiao": {"id": 13007}},
			{"id": 1300144, "nome": "Apuí"}
		]`))
	}))
	defer srv.Close()

	c, err := places.FetchIBGE(context.Background(), srv.Client(), srv.URL+"/api/v1/localidades/estados/13/municipios")

	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	name, ok := c.Name("1302603")
	assert.True(t, ok)
	assert.Equal(t, "Manaus", name)
}

func TestFetchIBGE_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := places.FetchIBGE(context.Background(), srv.Client(), srv.URL)

	assert.ErrorContains(t, err, "unexpected status 502")
}
