package geoip

import (
	"errors"
	"testing"
)

type countingResolver struct {
	code  string
	err   error
	calls int
}

func (f *countingResolver) CountryCode(string) (string, error) {
	f.calls++
	return f.code, f.err
}

func TestLookupNilResolver(t *testing.T) {
	if Lookup(nil) != nil {
		t.Fatalf("expected nil lookup for nil resolver")
	}
	var r *Resolver
	if Lookup(r) != nil {
		t.Fatalf("expected nil lookup for typed nil resolver")
	}
}

func TestLookupMemoizesAnswers(t *testing.T) {
	res := &countingResolver{code: "MX"}
	fn := Lookup(res)
	for i := 0; i < 3; i++ {
		got, err := fn("203.0.113.1")
		if err != nil || got != "MX" {
			t.Fatalf("lookup = %q, %v", got, err)
		}
	}
	if res.calls != 1 {
		t.Fatalf("resolver called %d times", res.calls)
	}
}

func TestLookupDoesNotCacheErrors(t *testing.T) {
	res := &countingResolver{err: errors.New("db closed")}
	fn := Lookup(res)
	_, _ = fn("203.0.113.1")
	_, _ = fn("203.0.113.1")
	if res.calls != 2 {
		t.Fatalf("resolver called %d times", res.calls)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil || r != nil {
		t.Fatalf("Open(empty) = %v, %v", r, err)
	}
	if _, err := r.CountryCode("203.0.113.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseAddr(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		public bool
	}{
		{"203.0.113.7", "203.0.113.7", true},
		{"203.0.113.7:443", "203.0.113.7", true},
		{"[2001:db8::1]:80", "2001:db8::1", true},
		{"::ffff:10.0.0.1", "10.0.0.1", false},
		{"127.0.0.1", "127.0.0.1", false},
		{"fe80::1", "fe80::1", false},
	}
	for _, tc := range cases {
		addr, err := parseAddr(tc.in)
		if err != nil {
			t.Fatalf("parseAddr(%q): %v", tc.in, err)
		}
		if addr.String() != tc.want || public(addr) != tc.public {
			t.Fatalf("parseAddr(%q) = %s public=%v", tc.in, addr, public(addr))
		}
	}
	if _, err := parseAddr("not-an-ip"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
