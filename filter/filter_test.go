package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/s0up4200/epoch/api"
)

func testMovies() []api.Movie {
	return []api.Movie{
		{ID: "1", Title: "Metropolis", Year: 1927, EraID: "1", Genre: "Sci-Fi", Director: "Fritz Lang", Duration: 153, Rating: 8.3},
		{ID: "2", Title: "Casablanca", Year: 1942, EraID: "2", Genre: "Drama", Director: "Michael Curtiz", Duration: 102, Rating: 8.5},
		{ID: "3", Title: "Star Wars", Year: 1977, EraID: "4", Genre: "Sci-Fi", Director: "George Lucas", Duration: 121, Rating: 8.6},
		{ID: "4", Title: "The Star Chamber", Year: 1983, EraID: "5", Genre: "Thriller", Director: "Peter Hyams", Duration: 109, Rating: 6.3},
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid expression",
			expression: `Year < 1950`,
		},
		{
			name:       "helpers and fields",
			expression: `hasText(Title, "star") && Rating >= 8.0 && decade(Year) == 1970`,
		},
		{
			name:        "empty expression",
			expression:  "   ",
			wantErr:     true,
			errContains: "empty expression",
		},
		{
			name:       "invalid syntax",
			expression: `hasText(Title, "unclosed`,
			wantErr:    true,
		},
		{
			name:        "not a boolean",
			expression:  `Title`,
			wantErr:     true,
			errContains: "failed to compile expression",
		},
		{
			name:       "unknown field",
			expression: `Budget > 10`,
			wantErr:    true,
		},
	}

	c := NewCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(tt.expression)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				var compErr *CompilationError
				if !errors.As(err, &compErr) {
					t.Errorf("expected *CompilationError, got %T", err)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Expression() != strings.TrimSpace(tt.expression) {
				t.Errorf("Expression() = %q, want %q", f.Expression(), tt.expression)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantIDs    []string
	}{
		{"silent era", `Year < 1930`, []string{"1"}},
		{"case-insensitive text", `hasText(Title, "STAR")`, []string{"3", "4"}},
		{"prefix", `hasTextPrefix(Title, "the ")`, []string{"4"}},
		{"suffix", `hasTextSuffix(Director, "lang")`, []string{"1"}},
		{"genre and rating", `Genre == "Sci-Fi" && Rating > 8.4`, []string{"3"}},
		{"era", `EraID in ["1", "2"]`, []string{"1", "2"}},
		{"decade", `decade(Year) == 1940`, []string{"2"}},
		{"lower", `lower(Genre) == "drama"`, []string{"2"}},
		{"upper", `upper(Title) == "CASABLANCA"`, []string{"2"}},
		{"duration", `Duration > 120`, []string{"1", "3"}},
		{"movie struct", `Movie.Title == "Star Wars"`, []string{"3"}},
		{"contains operator", `Title contains "Star"`, []string{"3", "4"}},
		{"startsWith operator", `lower(Title) startsWith "the"`, []string{"4"}},
		{"nothing matches", `Year > 2000`, []string{}},
	}

	c := NewCompiler()
	movies := testMovies()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(tt.expression)
			if err != nil {
				t.Fatalf("Compile(%q) failed: %v", tt.expression, err)
			}

			matched := c.Apply(f, movies)
			got := make([]string, 0, len(matched))
			for _, m := range matched {
				got = append(got, m.ID.String())
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("Apply() = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestCustomFunctions(t *testing.T) {
	c := NewCompiler(WithCustomFunctions(map[string]any{
		"classic": func(year int) bool { return year < 1960 },
	}))

	f, err := c.Compile(`classic(Year)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(c.Apply(f, testMovies())); got != 2 {
		t.Errorf("expected 2 classics, got %d", got)
	}
}

func TestCompilerCache(t *testing.T) {
	c := NewCompiler(WithCache(2))

	first, err := c.Compile(`Year < 1950`)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Compile(` Year < 1950 `)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Errorf("expected cached filter to be reused")
	}

	for _, e := range []string{`Year > 1950`, `Rating > 8`, `Duration > 100`} {
		if _, err := c.Compile(e); err != nil {
			t.Fatal(err)
		}
	}
	if c.Size() != 2 {
		t.Errorf("expected cache size 2, got %d", c.Size())
	}

	if NewCompiler().Size() != 0 {
		t.Errorf("expected uncached compiler to report size 0")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	cache := newLRUCache[int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)

	// touching a makes b the eviction candidate
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	cache.Put("c", 3)

	if _, ok := cache.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}

	cache.Put("c", 30)
	if v, _ := cache.Get("c"); v != 30 {
		t.Errorf("expected updated value 30, got %d", v)
	}
	if cache.Size() != 2 {
		t.Errorf("expected size 2, got %d", cache.Size())
	}
}

func TestHelperExpressionsCompile(t *testing.T) {
	expressions := []string{
		`Year < 1980 && hasText(Title, "star")`,
		`Year < 1980 && hasText(Genre, "noir")`,
		`hasTextPrefix(Title, "the") || hasTextSuffix(Director, "lang")`,
		`yearsAgo(50) > Year`,
	}

	c := NewCompiler()
	for _, e := range expressions {
		t.Run(e, func(t *testing.T) {
			if _, err := c.Compile(e); err != nil {
				t.Errorf("Compile(%q) failed: %v", e, err)
			}
		})
	}
}
