package sqlpos

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// TestPrepare_AutoDetectAndReuse prepares once and binds several times,
// including a bind that misses a parameter.
func TestPrepare_AutoDetectAndReuse(t *testing.T) {
	p, err := Prepare("SELECT :id, :name")
	assertNoError(t, err)
	if got, want := p.Names(), []string{"id", "name"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if p.SQL() != "SELECT $1, $2" || p.String() != p.SQL() {
		t.Fatalf("SQL() = %q", p.SQL())
	}

	args, err := p.Bind(P{"id": 1, "name": "Bob"})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{1, "Bob"})

	args, err = p.Bind(P{"id": 2, "name": "Stacy"})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{2, "Stacy"})

	_, err = p.Bind(P{"id": 1})
	if !errors.Is(err, ErrParamMissing) {
		t.Fatalf("expected ErrParamMissing, got: %v", err)
	}
	var pe *ParamError
	if !errors.As(err, &pe) || pe.Name != "name" {
		t.Fatalf("expected *ParamError for %q, got: %v", "name", err)
	}

	// The unit is still usable after a failed bind.
	q, args, err := p.ToPositional(P{"id": 3, "name": "Sue", "extra": true})
	assertNoError(t, err)
	if q != "SELECT $1, $2" {
		t.Fatalf("ToPositional sql = %q", q)
	}
	assertArgsEqual(t, args, []any{3, "Sue"})
}

// TestPrepare_FirstAppearanceDedup checks auto-detection ordering and dedup.
func TestPrepare_FirstAppearanceDedup(t *testing.T) {
	p, err := Prepare("SELECT * FROM t WHERE b = :b AND a = :a OR b <> :b AND c = :c_1")
	assertNoError(t, err)
	if got, want := p.Names(), []string{"b", "a", "c_1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if want := "SELECT * FROM t WHERE b = $1 AND a = $2 OR b <> $1 AND c = $3"; p.SQL() != want {
		t.Fatalf("SQL() = %q, want %q", p.SQL(), want)
	}
}

// TestPrepare_ExplicitNames fixes numbering by the given order; names absent
// from the SQL still take a slot, names absent from the list stay literal.
func TestPrepare_ExplicitNames(t *testing.T) {
	p, err := Prepare("SELECT :id, :name, :other", "name", "unused", "id")
	assertNoError(t, err)
	if want := "SELECT $3, $1, :other"; p.SQL() != want {
		t.Fatalf("SQL() = %q, want %q", p.SQL(), want)
	}
	args, err := p.Bind(P{"id": 1, "name": "Bob", "unused": nil})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{"Bob", nil, 1})

	if _, err := p.Bind(P{"id": 1, "name": "Bob"}); !errors.Is(err, ErrParamMissing) {
		t.Fatalf("expected ErrParamMissing for unused, got: %v", err)
	}
}

// TestPrepare_ExplicitNamesCopied ensures the caller's slice is not retained.
func TestPrepare_ExplicitNamesCopied(t *testing.T) {
	names := []string{"a", "b"}
	p, err := Prepare("SELECT :a, :b", names...)
	assertNoError(t, err)
	names[0] = "zzz"
	got := p.Names()
	got[1] = "yyy"
	if want := []string{"a", "b"}; !reflect.DeepEqual(p.Names(), want) {
		t.Fatalf("Names() = %v, want %v", p.Names(), want)
	}
}

// TestPrepare_InvalidAndDuplicateNames validates the set before rewriting.
func TestPrepare_InvalidAndDuplicateNames(t *testing.T) {
	for _, bad := range []string{": ,", "$1", "*test", "te+st", "test=", "%t^e-s@t ", ""} {
		p, err := Prepare("SELECT :id", "id", bad)
		if !errors.Is(err, ErrInvalidParamName) || p != nil {
			t.Fatalf("%q: expected ErrInvalidParamName, got p=%v err=%v", bad, p, err)
		}
	}
	if _, err := Prepare("SELECT :a", "a", "a"); !errors.Is(err, ErrParamDuplicate) {
		t.Fatalf("expected ErrParamDuplicate, got: %v", err)
	}
}

// TestPrepare_CastDetectionMatchesRewrite pins how detection treats names
// around '::'. Detection and rewriting must agree: whatever is detected is
// rewritten, and nothing after '::' is taken as a parameter.
func TestPrepare_CastDetectionMatchesRewrite(t *testing.T) {
	tests := []struct {
		sql       string
		wantNames []string
		wantSQL   string
	}{
		{"SELECT :text::text", []string{"text"}, "SELECT $1::text"},
		{"SELECT col::text", nil, "SELECT col::text"},
		{"SELECT ::text", nil, "SELECT ::text"},
		{"SELECT :::x", nil, "SELECT :::x"},
		{"SELECT :a::b, :b", []string{"a", "b"}, "SELECT $1::b, $2"},
		{"SELECT '12:30:00'", []string{"30", "00"}, "SELECT '12$1$2'"},
		{":x", []string{"x"}, "$1"},
		{"x:", nil, "x:"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			p, err := Prepare(tt.sql)
			assertNoError(t, err)
			if got := p.Names(); len(got) != len(tt.wantNames) || (len(got) > 0 && !reflect.DeepEqual(got, tt.wantNames)) {
				t.Fatalf("Names() = %v, want %v", got, tt.wantNames)
			}
			if p.SQL() != tt.wantSQL {
				t.Fatalf("SQL() = %q, want %q", p.SQL(), tt.wantSQL)
			}
			// One-shot conversion with the detected names in the same order agrees.
			ps := make(Params, 0, len(tt.wantNames))
			for _, n := range tt.wantNames {
				ps = append(ps, Param{Name: n, Value: n})
			}
			out, _, err := Convert(tt.sql, ps)
			assertNoError(t, err)
			if out != p.SQL() {
				t.Fatalf("Convert = %q, Prepare = %q", out, p.SQL())
			}
		})
	}
}

// TestBind_Sources resolves names from Params, structs, pointers and typed maps.
func TestBind_Sources(t *testing.T) {
	p, err := Prepare("INSERT INTO users (id, name, created) VALUES (:id, :name, :created)")
	assertNoError(t, err)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	type audit struct {
		Created time.Time `db:"created"`
	}
	type user struct {
		ID   int     `db:"id"`
		Name *string `db:"name"`
		audit
	}

	args, err := p.Bind(mustPairs(t, "created", now, "name", "Bob", "id", 1))
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{1, "Bob", now})

	args, err = p.Bind(&user{ID: 2, audit: audit{Created: now}})
	if !errors.Is(err, ErrParamMissing) {
		// embedded unexported struct is not flattened (unexported)
		t.Fatalf("expected ErrParamMissing for unexported embedded field, got args=%v err=%v", args, err)
	}

	type User struct {
		ID   int     `db:"id"`
		Name *string `db:"name"`
		Audit
	}
	name := "Ann"
	args, err = p.Bind(&User{ID: 3, Name: &name, Audit: Audit{Created: now}})
	assertNoError(t, err)
	if args[0] != 3 || *(args[1].(*string)) != "Ann" || args[2] != now {
		t.Fatalf("unexpected args: %v", args)
	}

	args, err = p.Bind(User{ID: 4, Audit: Audit{Created: now}})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{4, nil, now})

	args, err = p.Bind(map[string]int{"id": 5, "name": 6, "created": 7})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{5, 6, 7})

	if _, err := p.Bind(nil); !errors.Is(err, ErrParamMissing) {
		t.Fatalf("expected ErrParamMissing for nil source, got: %v", err)
	}
	if _, err := p.Bind((*User)(nil)); !errors.Is(err, ErrParamMissing) {
		t.Fatalf("expected ErrParamMissing for nil pointer, got: %v", err)
	}
	if _, err := p.Bind("nope"); !errors.Is(err, ErrUnsupportedParams) {
		t.Fatalf("expected ErrUnsupportedParams, got: %v", err)
	}
}

// Audit is an exported embedded struct used by TestBind_Sources.
type Audit struct {
	Created time.Time `db:"created"`
}

// TestBind_AmbiguousField surfaces colliding flattened field names.
func TestBind_AmbiguousField(t *testing.T) {
	type A struct {
		X int `db:"x"`
	}
	type B struct {
		X int `db:"x"`
	}
	type S struct {
		A A
		B B
		Y int `db:"y"`
	}
	p, err := Prepare("SELECT :x, :y")
	assertNoError(t, err)
	if _, err := p.Bind(S{}); !errors.Is(err, ErrFieldAmbiguous) {
		t.Fatalf("expected ErrFieldAmbiguous, got: %v", err)
	}
	if _, _, err := Convert("SELECT :y", S{}); !errors.Is(err, ErrFieldAmbiguous) {
		t.Fatalf("expected ErrFieldAmbiguous from Convert, got: %v", err)
	}

	py, err := Prepare("SELECT :y")
	assertNoError(t, err)
	args, err := py.Bind(S{Y: 9})
	assertNoError(t, err)
	assertArgsEqual(t, args, []any{9})
}

// TestBind_ReturnsFreshSlice ensures callers cannot affect later binds.
func TestBind_ReturnsFreshSlice(t *testing.T) {
	p, err := Prepare("SELECT :a")
	assertNoError(t, err)
	a1, err := p.Bind(P{"a": 1})
	assertNoError(t, err)
	a1[0] = 99
	a2, err := p.Bind(P{"a": 1})
	assertNoError(t, err)
	assertArgsEqual(t, a2, []any{1})
}

// TestPrepared_ConcurrentBind shares one *Prepared across goroutines.
func TestPrepared_ConcurrentBind(t *testing.T) {
	p, err := Prepare("SELECT * FROM t WHERE a=:a AND b=:b AND c=:c")
	assertNoError(t, err)

	const goroutines = 32
	const iters = 200
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				q, args, err := p.ToPositional(P{"a": g, "b": i, "c": fmt.Sprint(g, i)})
				if err != nil {
					t.Errorf("bind error: %v", err)
					return
				}
				if countMarkers(q) != 3 || len(args) != 3 || args[0] != g || args[1] != i {
					t.Errorf("unexpected result: %q %v", q, args)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
