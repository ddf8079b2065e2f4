package sqlpos

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Converter is the main entry point. It holds the configuration and a cache
// of prepared statements keyed by SQL text.
// A single Converter is safe for concurrent use.
type Converter struct {
	config Config
	cache  *expirable.LRU[string, *Prepared]
}

// Config defines limits and behavior tweaks for the rewriter.
type Config struct {
	// MaxParams limits the number of distinct parameters (and therefore
	// positional markers) a single statement may use.
	// If = 0 (or omitted), it defaults to 65535, the PostgreSQL wire limit.
	// If < 0, it's treated as "unlimited".
	MaxParams int
	// MaxNameLen limits the maximum allowed length of a parameter name.
	// Names longer than this cause ErrParamNameTooLong. Defaults to 64.
	MaxNameLen int
	// CacheSize bounds the number of statements kept by Cached().
	// Defaults to 256. If < 0, Cached() never stores anything.
	CacheSize int
	// CacheTTL expires cached statements after the given duration.
	// Zero means no expiration.
	CacheTTL time.Duration
}

// P is a convenient alias for map[string]any. Maps carry no order, so
// parameters bound from a P are numbered in ascending key order.
type P = map[string]any

// Param is a single named value.
type Param struct {
	Name  string
	Value any
}

// Params is an ordered list of named values. Its order decides the
// positional marker numbers assigned by Convert.
type Params []Param

const (
	defaultMaxParams  = 65535
	defaultMaxNameLen = 64
	defaultCacheSize  = 256
)

const cacheSize = 4096 // Default size for the field-layout cache

var (
	ErrInvalidParamName  = errors.New("sqlpos: only alphanumeric characters and the underscore are allowed in parameter names")
	ErrParamMissing      = errors.New("sqlpos: missing parameter")
	ErrParamDuplicate    = errors.New("sqlpos: duplicate parameter")
	ErrParamNameTooLong  = errors.New("sqlpos: parameter name too long")
	ErrTooManyParams     = errors.New("sqlpos: too many parameters")
	ErrFieldAmbiguous    = errors.New("sqlpos: ambiguous field name")
	ErrUnsupportedParams = errors.New("sqlpos: unsupported parameter source")
	ErrOddPairs          = errors.New("sqlpos: Pairs expects an even number of args (key,value,...)")
)

// ParamError reports a failure tied to a specific parameter name.
// It unwraps to one of the package sentinels, so errors.Is keeps working.
type ParamError struct {
	Name string
	Err  error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Name)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

var std = New()

// New returns a new Converter. Optionally provide a Config; unspecified
// fields fall back to sensible defaults.
func New(cfg ...Config) *Converter {
	c := &Converter{config: defaultConfig(cfg...)}
	if c.config.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, *Prepared](c.config.CacheSize, nil, c.config.CacheTTL)
	}
	return c
}

// Convert rewrites the :name placeholders of sql into $n markers using the
// package default Converter. See (*Converter).Convert.
func Convert(sql string, params any) (string, []any, error) {
	return std.Convert(sql, params)
}

// Prepare rewrites sql once using the package default Converter.
// See (*Converter).Prepare.
func Prepare(sql string, names ...string) (*Prepared, error) {
	return std.Prepare(sql, names...)
}

// Pairs builds Params from alternating name/value arguments, keeping the
// argument order.
func Pairs(kv ...any) (Params, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("%w, got %d", ErrOddPairs, len(kv))
	}
	ps := make(Params, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("sqlpos: Pairs key at position %d must be a string (got %T)", i, kv[i])
		}
		ps = append(ps, Param{Name: k, Value: kv[i+1]})
	}
	return ps, nil
}

// Names returns the parameter names in order.
func (ps Params) Names() []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

// Convert rewrites every :name placeholder of sql whose name is present in
// params into $n, where n is the 1-based position of the name in params.
//
// params may be Params, a struct (field order), a map with string keys
// (ascending key order), or nil. All names are validated before any
// rewriting happens. Names referenced in sql but absent from params are
// left untouched; names present in params but never referenced still occupy
// their slot in the returned values.
func (c *Converter) Convert(sql string, params any) (string, []any, error) {
	ps, err := orderedParams(params)
	if err != nil {
		return "", nil, err
	}
	names := ps.Names()
	if err := c.checkNames(names); err != nil {
		return "", nil, err
	}
	args := make([]any, len(ps))
	for i, p := range ps {
		args[i] = p.Value
	}
	return rewrite(sql, positions(names)), args, nil
}

// Prepare rewrites sql once and returns an immutable *Prepared that can
// bind values many times.
//
// If names are given, their order fixes the marker numbers. Otherwise the
// names are detected from sql in order of first appearance.
func (c *Converter) Prepare(sql string, names ...string) (*Prepared, error) {
	if len(names) == 0 {
		names = detectNames(sql)
	} else {
		names = append([]string(nil), names...)
	}
	if err := c.checkNames(names); err != nil {
		return nil, err
	}
	return &Prepared{
		sql:   rewrite(sql, positions(names)),
		names: names,
	}, nil
}

// checkNames validates the whole parameter set up front.
func (c *Converter) checkNames(names []string) error {
	if c.config.MaxParams > 0 && len(names) > c.config.MaxParams {
		return fmt.Errorf("%w: requested=%d, limit=%d", ErrTooManyParams, len(names), c.config.MaxParams)
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if err := validateName(name, c.config.MaxNameLen); err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			return &ParamError{Name: name, Err: ErrParamDuplicate}
		}
		seen[name] = struct{}{}
	}
	return nil
}

// defaultConfig merges user config with defaults.
func defaultConfig(config ...Config) Config {
	c := Config{}

	if len(config) > 0 {
		c = config[0]
	}

	if c.MaxParams == 0 {
		c.MaxParams = defaultMaxParams
	}

	if c.MaxNameLen <= 0 {
		c.MaxNameLen = defaultMaxNameLen
	}

	if c.CacheSize == 0 {
		c.CacheSize = defaultCacheSize
	}

	return c
}
