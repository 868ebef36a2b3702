package dict

import (
	"context"
	"errors"
	"testing"
)

type fakeReader struct {
	entries map[string][]Entry
	err     error
}

func (f *fakeReader) ReadAll(_ context.Context, field string) ([]Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[field], nil
}

func TestLookupCaseInsensitive(t *testing.T) {
	r := &fakeReader{entries: map[string][]Entry{
		"browser": {{Name: "chrome", Code: 5}},
	}}
	c, err := Refresh(context.Background(), r, []string{"browser"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for _, label := range []string{"chrome", "Chrome", "CHROME", "cHrOmE"} {
		if got := c.Lookup("browser", label); got != 5 {
			t.Errorf("Lookup(browser, %q) = %d, want 5", label, got)
		}
	}
}

func TestLookupMissYieldsZero(t *testing.T) {
	r := &fakeReader{entries: map[string][]Entry{
		"browser": {{Name: "chrome", Code: 5}},
	}}
	c, err := Refresh(context.Background(), r, []string{"browser"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if got := c.Lookup("browser", "netscape"); got != 0 {
		t.Errorf("unknown label = %d, want 0", got)
	}
	if got := c.Lookup("browser", ""); got != 0 {
		t.Errorf("empty label = %d, want 0", got)
	}
	if got := c.Lookup("deviceVendor", "apple"); got != 0 {
		t.Errorf("untracked field = %d, want 0", got)
	}
}

func TestEmptyCacheLookups(t *testing.T) {
	c := NewCache()
	if got := c.Lookup("browser", "chrome"); got != 0 {
		t.Errorf("empty cache lookup = %d, want 0", got)
	}
}

func TestRefreshFailureReturnsError(t *testing.T) {
	r := &fakeReader{err: errors.New("store down")}
	if _, err := Refresh(context.Background(), r, []string{"browser"}); err == nil {
		t.Fatal("expected refresh error when a collection read fails")
	}
}

func TestRefreshIsWholesale(t *testing.T) {
	r := &fakeReader{entries: map[string][]Entry{
		"browser": {{Name: "chrome", Code: 5}},
	}}
	old, err := Refresh(context.Background(), r, []string{"browser"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// A later refresh builds a new cache; the old one keeps its mapping.
	r.entries["browser"] = []Entry{{Name: "chrome", Code: 5}, {Name: "firefox", Code: 6}}
	fresh, err := Refresh(context.Background(), r, []string{"browser"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if got := old.Lookup("browser", "firefox"); got != 0 {
		t.Errorf("old cache saw new entry, got %d", got)
	}
	if got := fresh.Lookup("browser", "firefox"); got != 6 {
		t.Errorf("fresh cache Lookup(firefox) = %d, want 6", got)
	}
}
