package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goexpense/internal/adapter/http/dto"
	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

type recordFixture struct {
	env    *testEnv
	router chi.Router
	token  string
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()

	env := newTestEnv()
	h := NewRecordHandler(env.sessions, zerolog.Nop())

	token, err := env.jwt.Generate(&domain.User{ID: "alice", Email: "alice@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", h.List)
		r.Get("/records/grouped", h.Grouped)
		r.Post("/records", h.Add)
		r.Post("/records/reload", h.Reload)
		r.Delete("/records/{id}", h.Delete)
		r.Post("/records/{id}/edit", h.BeginEdit)
		r.Get("/edit", h.GetEdit)
		r.Put("/edit", h.UpdateDraft)
		r.Post("/edit/commit", h.CommitEdit)
		r.Delete("/edit", h.CancelEdit)
	})

	t.Cleanup(func() { _ = env.sessions.CloseAll(context.Background()) })

	return &recordFixture{env: env, router: r, token: token}
}

func (f *recordFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.env.withClaims(t, jsonRequest(method, target, body), f.token))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func TestRecordHandler_RequiresIdentity(t *testing.T) {
	f := newRecordFixture(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRecordHandler_AddAndList(t *testing.T) {
	f := newRecordFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/records", `{"description":"  Coffee ","value":"3.5"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[dto.RecordResponse](t, rr)
	if created.Description != "Coffee" || created.Value != "3.50" || created.Date != "2024-03-10" {
		t.Fatalf("unexpected record %+v", created)
	}

	f.do(t, http.MethodPost, "/api/v1/records", `{"description":"Lunch","value":12}`)

	list := decode[dto.RecordListResponse](t, f.do(t, http.MethodGet, "/api/v1/records", ""))
	if len(list.Records) != 2 || list.Total != "15.50" {
		t.Fatalf("unexpected list %+v", list)
	}

	grouped := decode[dto.GroupedViewResponse](t, f.do(t, http.MethodGet, "/api/v1/records/grouped", ""))
	if len(grouped.Groups) != 1 || grouped.Groups[0].DateLabel != "10/03/2024" || grouped.Groups[0].Subtotal != "15.50" {
		t.Fatalf("unexpected grouped view %+v", grouped)
	}
}

func TestRecordHandler_AddRejectsInvalidInput(t *testing.T) {
	f := newRecordFixture(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty description", `{"description":"  ","value":"1"}`, domain.FieldDescription},
		{"missing value", `{"description":"Tea"}`, domain.FieldValue},
		{"not a number", `{"description":"Tea","value":"abc"}`, domain.FieldValue},
		{"negative", `{"description":"Tea","value":"-1"}`, domain.FieldValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/v1/records", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
			}
			if resp := decode[dto.ErrorResponse](t, rr); resp.Field != tt.field {
				t.Fatalf("expected field %q, got %+v", tt.field, resp)
			}
		})
	}

	records, _ := f.env.repo.Query(context.Background(), usecase.RecordFilter{Owner: "alice"})
	if len(records) != 0 {
		t.Fatalf("expected nothing persisted, got %d records", len(records))
	}
}

func TestRecordHandler_EditFlow(t *testing.T) {
	f := newRecordFixture(t)

	created := decode[dto.RecordResponse](t, f.do(t, http.MethodPost, "/api/v1/records", `{"description":"Taxi","value":"20"}`))

	if rr := f.do(t, http.MethodPut, "/api/v1/edit", `{"description":"x","value":"1"}`); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without an edit session, got %d", rr.Code)
	}

	rr := f.do(t, http.MethodPost, "/api/v1/records/"+created.ID+"/edit", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	edit := decode[dto.EditSessionResponse](t, rr)
	if edit.RecordID != created.ID || edit.Value != "20.00" {
		t.Fatalf("unexpected edit session %+v", edit)
	}

	f.do(t, http.MethodPut, "/api/v1/edit", `{"description":"Taxi home","value":""}`)
	if rr := f.do(t, http.MethodPost, "/api/v1/edit/commit", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected invalid draft to be rejected, got %d", rr.Code)
	}

	state := decode[dto.EditStateResponse](t, f.do(t, http.MethodGet, "/api/v1/edit", ""))
	if !state.Editing || state.Session.Description != "Taxi home" {
		t.Fatalf("expected edit session to stay open, got %+v", state)
	}

	f.do(t, http.MethodPut, "/api/v1/edit", `{"description":"Taxi home","value":"22.4"}`)
	rr = f.do(t, http.MethodPost, "/api/v1/edit/commit", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected commit to succeed, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decode[dto.RecordResponse](t, rr)
	if updated.ID != created.ID || updated.Value != "22.40" || updated.Date != created.Date {
		t.Fatalf("unexpected updated record %+v", updated)
	}

	state = decode[dto.EditStateResponse](t, f.do(t, http.MethodGet, "/api/v1/edit", ""))
	if state.Editing {
		t.Fatalf("expected edit session to be closed after commit")
	}
}

func TestRecordHandler_CancelEdit(t *testing.T) {
	f := newRecordFixture(t)

	created := decode[dto.RecordResponse](t, f.do(t, http.MethodPost, "/api/v1/records", `{"description":"Book","value":"9.99"}`))
	f.do(t, http.MethodPost, "/api/v1/records/"+created.ID+"/edit", "")
	f.do(t, http.MethodPut, "/api/v1/edit", `{"description":"Changed","value":"1"}`)

	if rr := f.do(t, http.MethodDelete, "/api/v1/edit", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	list := decode[dto.RecordListResponse](t, f.do(t, http.MethodGet, "/api/v1/records", ""))
	if len(list.Records) != 1 || list.Records[0].Description != "Book" {
		t.Fatalf("expected record unchanged, got %+v", list.Records)
	}
}

func TestRecordHandler_Delete(t *testing.T) {
	f := newRecordFixture(t)

	created := decode[dto.RecordResponse](t, f.do(t, http.MethodPost, "/api/v1/records", `{"description":"Gym","value":"30"}`))

	if rr := f.do(t, http.MethodDelete, "/api/v1/records/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := f.do(t, http.MethodDelete, "/api/v1/records/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing record, got %d", rr.Code)
	}

	list := decode[dto.RecordListResponse](t, f.do(t, http.MethodGet, "/api/v1/records", ""))
	if len(list.Records) != 0 || list.Total != "0.00" {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestRecordHandler_Reload(t *testing.T) {
	f := newRecordFixture(t)

	f.do(t, http.MethodGet, "/api/v1/records", "")

	// Written behind the store's back, visible only after a reload.
	_, err := f.env.repo.Insert(context.Background(), &domain.Record{
		Description: "Imported",
		Value:       decimal.NewFromInt(5),
		Date:        "2024-03-01",
		Owner:       "alice",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	list := decode[dto.RecordListResponse](t, f.do(t, http.MethodGet, "/api/v1/records", ""))
	if len(list.Records) != 0 {
		t.Fatalf("expected stale list before reload, got %+v", list.Records)
	}

	rr := f.do(t, http.MethodPost, "/api/v1/records/reload", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	list = decode[dto.RecordListResponse](t, rr)
	if len(list.Records) != 1 || list.Records[0].Description != "Imported" {
		t.Fatalf("expected reloaded records, got %+v", list.Records)
	}
}
