// Package benchmarks provides comparative benchmarks between locus and
// other dependency containers.
//
// Run benchmarks with: go test -bench=. -benchmem ./benchmarks/
package benchmarks

import (
	"reflect"
	"testing"

	"github.com/mryildirim91/locus"
	"github.com/samber/do/v2"
	"go.uber.org/dig"
)

// Simple service with no dependencies
type Logger struct {
	Name string
}

func NewLogger() *Logger {
	return &Logger{Name: "logger"}
}

// Service with 1 dependency
type Config struct {
	Value string
}

func NewConfig() *Config {
	return &Config{Value: "config"}
}

// Service with 2 dependencies
type Database struct {
	Logger *Logger
	Config *Config
}

func NewDatabase(logger *Logger, config *Config) *Database {
	return &Database{Logger: logger, Config: config}
}

// Service with 3 dependencies
type Cache struct {
	Logger   *Logger
	Config   *Config
	Database *Database
}

func NewCache(logger *Logger, config *Config, db *Database) *Cache {
	return &Cache{Logger: logger, Config: config, Database: db}
}

// Service with 5 dependencies
type UserService struct {
	Logger   *Logger
	Config   *Config
	Database *Database
	Cache    *Cache
	Dep5     *Dep5
}

type Dep5 struct {
	Value int
}

func NewDep5() *Dep5 {
	return &Dep5{Value: 5}
}

func NewUserService(logger *Logger, config *Config, db *Database, cache *Cache, dep5 *Dep5) *UserService {
	return &UserService{Logger: logger, Config: config, Database: db, Cache: cache, Dep5: dep5}
}

// singleton registers a lazy Singleton descriptor whose defining type is
// the constructor's return type.
func singleton(rt *locus.Runtime, ctor any) {
	out := reflect.TypeOf(ctor).Out(0)
	_ = rt.Register(&locus.Descriptor{
		ConcreteType:  out,
		DefiningTypes: []reflect.Type{out},
		Strategy:      locus.Direct,
		Lifetime:      locus.Singleton,
		Activation:    locus.Lazy,
		Constructors:  []any{ctor},
	})
}

func newFullRuntime() *locus.Runtime {
	rt := locus.New()
	singleton(rt, NewLogger)
	singleton(rt, NewConfig)
	singleton(rt, NewDatabase)
	singleton(rt, NewCache)
	singleton(rt, NewDep5)
	singleton(rt, NewUserService)
	return rt
}

func BenchmarkBuild_Locus(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rt := newFullRuntime()
		_ = rt.Build()
		_ = rt.Close()
	}
}

func BenchmarkBuild_Dig(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := dig.New()
		c.Provide(NewLogger)
		c.Provide(NewConfig)
		c.Provide(NewDatabase)
		c.Provide(NewCache)
		c.Provide(NewDep5)
		c.Provide(NewUserService)
	}
}

func BenchmarkBuild_Do(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		injector := do.New()
		do.Provide(injector, func(i do.Injector) (*Logger, error) { return NewLogger(), nil })
		do.Provide(injector, func(i do.Injector) (*Config, error) { return NewConfig(), nil })
		do.Provide(injector, func(i do.Injector) (*Database, error) {
			return NewDatabase(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i)), nil
		})
		do.Provide(injector, func(i do.Injector) (*Cache, error) {
			return NewCache(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i), do.MustInvoke[*Database](i)), nil
		})
		do.Provide(injector, func(i do.Injector) (*Dep5, error) { return NewDep5(), nil })
		do.Provide(injector, func(i do.Injector) (*UserService, error) {
			return NewUserService(
				do.MustInvoke[*Logger](i),
				do.MustInvoke[*Config](i),
				do.MustInvoke[*Database](i),
				do.MustInvoke[*Cache](i),
				do.MustInvoke[*Dep5](i),
			), nil
		})
		injector.Shutdown()
	}
}

func BenchmarkResolve_Simple_Locus(b *testing.B) {
	rt := locus.New()
	singleton(rt, NewLogger)
	defer rt.Close()

	locus.MustGet[*Logger](rt)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = locus.MustGet[*Logger](rt)
	}
}

func BenchmarkResolve_Simple_Dig(b *testing.B) {
	c := dig.New()
	c.Provide(NewLogger)

	c.Invoke(func(l *Logger) {})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Invoke(func(l *Logger) {})
	}
}

func BenchmarkResolve_Simple_Do(b *testing.B) {
	injector := do.New()
	do.Provide(injector, func(i do.Injector) (*Logger, error) { return NewLogger(), nil })

	do.MustInvoke[*Logger](injector)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = do.MustInvoke[*Logger](injector)
	}
}

func BenchmarkResolve_Complex_Locus(b *testing.B) {
	rt := newFullRuntime()
	defer rt.Close()

	locus.MustGet[*UserService](rt)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = locus.MustGet[*UserService](rt)
	}
}

func BenchmarkResolve_Complex_Dig(b *testing.B) {
	c := dig.New()
	c.Provide(NewLogger)
	c.Provide(NewConfig)
	c.Provide(NewDatabase)
	c.Provide(NewCache)
	c.Provide(NewDep5)
	c.Provide(NewUserService)

	c.Invoke(func(s *UserService) {})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Invoke(func(s *UserService) {})
	}
}

func BenchmarkResolve_Complex_Do(b *testing.B) {
	injector := do.New()
	do.Provide(injector, func(i do.Injector) (*Logger, error) { return NewLogger(), nil })
	do.Provide(injector, func(i do.Injector) (*Config, error) { return NewConfig(), nil })
	do.Provide(injector, func(i do.Injector) (*Database, error) {
		return NewDatabase(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		return NewCache(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i), do.MustInvoke[*Database](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Dep5, error) { return NewDep5(), nil })
	do.Provide(injector, func(i do.Injector) (*UserService, error) {
		return NewUserService(
			do.MustInvoke[*Logger](i),
			do.MustInvoke[*Config](i),
			do.MustInvoke[*Database](i),
			do.MustInvoke[*Cache](i),
			do.MustInvoke[*Dep5](i),
		), nil
	})

	do.MustInvoke[*UserService](injector)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = do.MustInvoke[*UserService](injector)
	}
}
