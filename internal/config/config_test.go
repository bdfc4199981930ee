package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default() failed validation: %v", err)
	}
}

func TestValidateCatchesBadRanges(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"empty out path", func(c *Config) { c.OutPath = "" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"start past max", func(c *Config) { c.StartPrefix = 0x100000 }},
		{"end past max", func(c *Config) { c.EndPrefix = 0x100000 }},
		{"start after end", func(c *Config) { c.StartPrefix, c.EndPrefix = 10, 5 }},
		{"non-positive timeout", func(c *Config) { c.HTTPTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mut(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
