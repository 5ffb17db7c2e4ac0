package filter

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/epoch/api"
)

// Filter is a compiled movie filter expression
type Filter struct {
	expression string
	program    *vm.Program
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = newLRUCache[*Filter](size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) CompilerOption {
	return func(c *Compiler) {
		maps.Copy(c.helpers, funcs)
	}
}

// Compiler compiles filter expressions such as
//
//	Year < 1980 && hasText(Title, "star")
//
// into filters over catalogue movies.
type Compiler struct {
	helpers map[string]any
	cache   *lruCache[*Filter]
	envPool sync.Pool
}

// NewCompiler creates a new expr-based filter compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{helpers: helperFunctions()}
	for _, opt := range opts {
		opt(c)
	}
	c.envPool.New = func() any {
		return make(map[string]any, 32)
	}
	return c
}

// Compile compiles an expression into a filter
func (c *Compiler) Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression"}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(c.environment(api.Movie{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	f := &Filter{expression: expression, program: program}
	if c.cache != nil {
		c.cache.Put(expression, f)
	}
	return f, nil
}

// Apply returns the movies matching f. Movies the expression fails on are
// left out.
func (c *Compiler) Apply(f *Filter, movies []api.Movie) []api.Movie {
	matched := make([]api.Movie, 0, len(movies))
	for _, m := range movies {
		if c.Match(f, m) {
			matched = append(matched, m)
		}
	}
	return matched
}

// Match evaluates f against a single movie
func (c *Compiler) Match(f *Filter, movie api.Movie) bool {
	env := c.envPool.Get().(map[string]any)
	defer func() {
		clear(env)
		c.envPool.Put(env)
	}()

	maps.Copy(env, c.helpers)
	addMovie(env, movie)

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false
	}
	return result.(bool)
}

// Size returns the number of cached filters
func (c *Compiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Expression returns the original expression
func (f *Filter) Expression() string {
	return f.expression
}

func (c *Compiler) environment(movie api.Movie) map[string]any {
	env := make(map[string]any, len(c.helpers)+16)
	maps.Copy(env, c.helpers)
	addMovie(env, movie)
	return env
}

func addMovie(env map[string]any, movie api.Movie) {
	env["Movie"] = movie
	env["ID"] = movie.ID.String()
	env["Title"] = movie.Title
	env["Year"] = movie.Year
	env["EraID"] = movie.EraID.String()
	env["Genre"] = movie.Genre
	env["Director"] = movie.Director
	env["Duration"] = movie.Duration
	env["Rating"] = movie.Rating
}

func helperFunctions() map[string]any {
	return map[string]any{
		"hasText": func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
		"hasTextPrefix": func(str, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
		},
		"hasTextSuffix": func(str, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"yearsAgo": func(years int) int {
			return time.Now().Year() - years
		},
		"decade": func(year int) int {
			return year - year%10
		},
	}
}
