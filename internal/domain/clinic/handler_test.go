package clinic

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	h := NewHandler(f.svc, countStub(3), countStub(9))
	h.now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	return h, f, echo.New()
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", code, err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_AddAndListDentists(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	if err := h.AddDentist(e.NewContext(jsonRequest(http.MethodPost, "/", `{"name":"Dr. Ivanova"}`), rec)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	if err := h.ListDentists(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []Dentist
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Name != "Dr. Ivanova" || items[0].Color != DefaultDentistColors[0] {
		t.Errorf("unexpected dentists %+v", items)
	}
}

func TestHandler_AddDentistRequiresName(t *testing.T) {
	h, _, e := newTestHandler()
	err := h.AddDentist(e.NewContext(jsonRequest(http.MethodPost, "/", `{"name":""}`), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusBadRequest)
}

func TestHandler_RemoveDentistNeedsConfirm(t *testing.T) {
	h, f, e := newTestHandler()
	d := f.addDentist(t, "Dr. A")

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(d.ID)
	expectHTTPError(t, h.RemoveDentist(c), http.StatusPreconditionRequired)

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/?confirm=true", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID)
	if err := h.RemoveDentist(c); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_AddVacation(t *testing.T) {
	h, f, e := newTestHandler()
	d := f.addDentist(t, "Dr. A")

	body := `{"dentist_id":"` + d.ID + `","start_date":"2025-06-12","end_date":"2025-06-10"}`
	err := h.AddVacation(e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusBadRequest)

	body = `{"dentist_id":"missing","start_date":"2025-06-10","end_date":"2025-06-12"}`
	err = h.AddVacation(e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusNotFound)

	body = `{"dentist_id":"` + d.ID + `","start_date":"2025-06-10","end_date":"2025-06-12"}`
	rec := httptest.NewRecorder()
	if err := h.AddVacation(e.NewContext(jsonRequest(http.MethodPost, "/", body), rec)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListVacations(e.NewContext(httptest.NewRequest(http.MethodGet, "/?dentist_id="+d.ID, nil), rec))
	var items []Vacation
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].EndDate != "2025-06-12" {
		t.Errorf("unexpected vacations %+v", items)
	}
}

func TestHandler_WorkingHours(t *testing.T) {
	h, _, e := newTestHandler()

	err := h.SaveWorkingHours(e.NewContext(jsonRequest(http.MethodPut, "/", `{"start":12,"end":9}`), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusBadRequest)

	if err := h.SaveWorkingHours(e.NewContext(jsonRequest(http.MethodPut, "/", `{"start":8,"end":16}`), httptest.NewRecorder())); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec := httptest.NewRecorder()
	h.GetWorkingHours(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	if strings.TrimSpace(rec.Body.String()) != `{"start":8,"end":16}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Catalogs(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("catalog")
	c.SetParamValues("appointment-types")
	if err := h.GetCatalog(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	var entries []CatalogEntry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != len(DefaultAppointmentTypes) || entries[0].Label == "" {
		t.Errorf("unexpected entries %+v", entries)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("catalog")
	c.SetParamValues("rooms")
	expectHTTPError(t, h.GetCatalog(c), http.StatusNotFound)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"key":"Implant","label_bg":"Имплант"}`), rec)
	c.SetParamNames("catalog")
	c.SetParamValues("appointment-types")
	if err := h.AddCatalogEntry(c); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Stats(t *testing.T) {
	h, f, e := newTestHandler()
	f.addDentist(t, "Dr. A")

	rec := httptest.NewRecorder()
	if err := h.GetStats(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st Stats
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st != (Stats{AppointmentsToday: 3, PatientsCount: 9, DentistsCount: 1}) {
		t.Errorf("unexpected stats %+v", st)
	}

	err := h.GetStats(e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=tomorrow", nil), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusBadRequest)
}
