package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		target string
		want   Params
	}{
		{"/", Params{Limit: DefaultLimit}},
		{"/?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"/?limit=9999", Params{Limit: MaxLimit}},
		{"/?limit=-3&offset=-1", Params{Limit: DefaultLimit}},
		{"/?limit=abc&offset=xyz", Params{Limit: DefaultLimit}},
	}
	for _, tt := range tests {
		if got := paramsFor(t, tt.target); got != tt.want {
			t.Errorf("FromContext(%s) = %+v, want %+v", tt.target, got, tt.want)
		}
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name    string
		p       Params
		want    []string
		hasMore bool
	}{
		{"first", Params{Limit: 2}, []string{"a", "b"}, true},
		{"middle", Params{Limit: 2, Offset: 2}, []string{"c", "d"}, true},
		{"last", Params{Limit: 2, Offset: 4}, []string{"e"}, false},
		{"past end", Params{Limit: 2, Offset: 10}, []string{}, false},
		{"all", Params{Limit: 10}, items, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Page(items, tt.p)
			if r.Total != 5 {
				t.Errorf("Total = %d, want 5", r.Total)
			}
			if r.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", r.HasMore, tt.hasMore)
			}
			if len(r.Items) != len(tt.want) {
				t.Fatalf("Items = %v, want %v", r.Items, tt.want)
			}
			for i := range tt.want {
				if r.Items[i] != tt.want[i] {
					t.Errorf("Items[%d] = %s, want %s", i, r.Items[i], tt.want[i])
				}
			}
		})
	}
}

func TestPage_NilItems(t *testing.T) {
	r := Page[int](nil, Params{Limit: 10})
	if r.Items == nil || len(r.Items) != 0 || r.Total != 0 {
		t.Errorf("expected empty non-nil page, got %+v", r)
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("NextOffset = %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("PreviousOffset = %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious")
	}
	if !p.HasNext(20) || p.HasNext(15) {
		t.Error("HasNext mismatch")
	}
}
