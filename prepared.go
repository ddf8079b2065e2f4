package sqlpos

// Prepared is a statement whose placeholders were rewritten once.
// It is immutable and safe for concurrent use; binding values never
// modifies it.
type Prepared struct {
	sql   string
	names []string
}

// SQL returns the rewritten statement.
func (p *Prepared) SQL() string {
	return p.sql
}

// Names returns a copy of the parameter names; names[i] is bound to $(i+1).
func (p *Prepared) Names() []string {
	return append([]string(nil), p.names...)
}

// String returns the rewritten statement.
func (p *Prepared) String() string {
	return p.sql
}

// Bind looks up every parameter name of p in params, in order, and returns
// the values aligned to the positional markers. params may be a map, a
// struct or Params. Keys not used by the statement are ignored.
//
// A name absent from params yields a *ParamError wrapping ErrParamMissing.
func (p *Prepared) Bind(params any) ([]any, error) {
	args := make([]any, len(p.names))
	for i, name := range p.names {
		v, ok, err := lookup(params, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ParamError{Name: name, Err: ErrParamMissing}
		}
		args[i] = v
	}
	return args, nil
}

// ToPositional is SQL() and Bind() in one call.
func (p *Prepared) ToPositional(params any) (string, []any, error) {
	args, err := p.Bind(params)
	if err != nil {
		return "", nil, err
	}
	return p.sql, args, nil
}
