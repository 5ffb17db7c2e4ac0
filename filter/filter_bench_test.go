package filter

import (
	"fmt"
	"testing"

	"github.com/s0up4200/epoch/api"
)

// generateTestMovies creates a catalogue page worth of movies
func generateTestMovies(count int) []api.Movie {
	genres := []string{"Drama", "Sci-Fi", "Noir", "Western"}
	movies := make([]api.Movie, count)
	for i := range movies {
		movies[i] = api.Movie{
			ID:       api.ID(fmt.Sprint(i)),
			Title:    fmt.Sprintf("Movie %d", i),
			Year:     1920 + i%80,
			EraID:    api.ID(fmt.Sprint(i % 8)),
			Genre:    genres[i%len(genres)],
			Duration: 80 + i%70,
			Rating:   5.0 + float64(i%50)/10,
		}
	}
	return movies
}

func BenchmarkCompile(b *testing.B) {
	expressions := []struct {
		name string
		expr string
	}{
		{"simple", `Year < 1950`},
		{"complex", `hasText(Title, "movie") && decade(Year) == 1940 && Rating > 7.0`},
	}

	for _, tc := range expressions {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := NewCompiler().Compile(tc.expr); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCompileWithCache(b *testing.B) {
	compiler := NewCompiler(WithCache(100))
	expression := `Genre == "Noir" && Year > 1940`

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := compiler.Compile(expression); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkApply(b *testing.B) {
	compiler := NewCompiler()
	f, err := compiler.Compile(`Genre == "Sci-Fi" && Rating > 7.5`)
	if err != nil {
		b.Fatal(err)
	}

	for _, size := range []int{12, 100, 1000} {
		movies := generateTestMovies(size)
		b.Run(fmt.Sprintf("movies_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = compiler.Apply(f, movies)
			}
		})
	}
}
