package sqlpos

// Cached returns the auto-detected *Prepared for sql, preparing it on the
// first call and reusing it afterwards. Preparation errors are not cached.
// With a negative Config.CacheSize it behaves like Prepare(sql).
func (c *Converter) Cached(sql string) (*Prepared, error) {
	if c.cache == nil {
		return c.Prepare(sql)
	}
	if p, ok := c.cache.Get(sql); ok {
		return p, nil
	}
	p, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	c.cache.Add(sql, p)
	return p, nil
}

// Cached returns the auto-detected *Prepared for sql from the package
// default Converter's cache.
func Cached(sql string) (*Prepared, error) {
	return std.Cached(sql)
}

// Purge drops every cached statement.
func (c *Converter) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// CacheLen reports how many statements are currently cached.
func (c *Converter) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
