package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/pkg/model"
)

func newTestResource(t *testing.T, h http.HandlerFunc) *Resource[model.Designation] {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewResource[model.Designation](NewClient(ts.URL, time.Second, nil), model.DesignationEntity)
}

func TestFetch_QueryAndDecode(t *testing.T) {
	var gotQuery map[string][]string
	var gotReqID string
	r := newTestResource(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/v1/designations" {
			t.Errorf("path = %s", req.URL.Path)
		}
		gotQuery = req.URL.Query()
		gotReqID = req.Header.Get("X-Request-ID")
		io.WriteString(w, `{"header":{"errorCount":0,"messages":[]},"designations":[{"designationId":7,"designationCode":"QA","designationName":"Quality"}],"totalRecord":1}`)
	})

	page, err := r.Fetch(context.Background(), 2, 25, "  ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQuery["pageNumber"][0] != "2" || gotQuery["pageSize"][0] != "25" {
		t.Errorf("query = %v", gotQuery)
	}
	if _, ok := gotQuery["searchText"]; ok {
		t.Error("blank searchText should be omitted")
	}
	if gotReqID == "" {
		t.Error("missing X-Request-ID")
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != 7 {
		t.Errorf("page = %+v", page)
	}

	if _, err := r.Fetch(context.Background(), 1, 10, "qa"); err != nil {
		t.Fatal(err)
	}
	if gotQuery["searchText"][0] != "qa" {
		t.Errorf("searchText = %v", gotQuery["searchText"])
	}
}

func TestFetch_BusinessErrorOnHTTPError(t *testing.T) {
	r := newTestResource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"header":{"errorCount":1,"messages":[{"messageLevel":"Error","messageText":"bad page"}]}}`)
	})
	page, err := r.Fetch(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Header.OK() || page.Header.Messages[0].Text != "bad page" {
		t.Errorf("header = %+v", page.Header)
	}
}

func TestFetch_ContractAndStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"missing total", 200, `{"header":{"errorCount":0},"designations":[]}`, func(err error) bool { return errors.Is(err, model.ErrContract) }},
		{"not json", 200, `<html>`, func(err error) bool { return errors.Is(err, model.ErrContract) }},
		{"gateway page", 502, `Bad Gateway`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.Code == 502
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResource(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			if _, err := r.Fetch(context.Background(), 1, 10, ""); !tt.check(err) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestCreateAndUpdate_SendMergedPayload(t *testing.T) {
	var method, path string
	var body map[string]any
	r := newTestResource(t, func(w http.ResponseWriter, req *http.Request) {
		method, path = req.Method, req.URL.Path
		json.NewDecoder(req.Body).Decode(&body)
		io.WriteString(w, `{"header":{"errorCount":0,"messages":[{"messageLevel":"Success","messageText":"Saved"}]},"designation":{"designationId":3,"designationCode":"OP","designationName":"Operator"}}`)
	})
	audit := model.Audit{Actor: "qa.lead", Signature: "QL", Reason: "typo", AuditOn: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	res, err := r.Update(context.Background(), model.Payload[model.Designation]{Record: model.Designation{ID: 3, Code: "OP", Name: "Operator"}, Audit: audit})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if method != http.MethodPut || path != "/api/v1/designations/3" {
		t.Errorf("request = %s %s", method, path)
	}
	if body["designationCode"] != "OP" || body["reason"] != "typo" || body["actor"] != "qa.lead" {
		t.Errorf("body = %v", body)
	}
	if res.Record == nil || res.Record.ID != 3 {
		t.Errorf("result = %+v", res)
	}

	if _, err := r.Create(context.Background(), model.Payload[model.Designation]{Record: model.Designation{Code: "OP", Name: "Operator"}, Audit: audit}); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/api/v1/designations" {
		t.Errorf("request = %s %s", method, path)
	}
}

func TestUpdate_RequiresID(t *testing.T) {
	r := newTestResource(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	_, err := r.Update(context.Background(), model.Payload[model.Designation]{Record: model.Designation{Code: "A"}})
	if !model.IsValidation(err) {
		t.Errorf("err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	var got string
	r := newTestResource(t, func(w http.ResponseWriter, req *http.Request) {
		got = req.Method + " " + req.URL.Path + "?" + req.URL.RawQuery
		io.WriteString(w, `{"header":{"errorCount":0,"messages":[{"messageLevel":"Success","messageText":"Deleted"}]}}`)
	})
	var del listflow.DeleteFunc = r.Delete
	env, err := del(context.Background(), listflow.DeleteRequest{ID: 9, Actor: "qa.lead"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got != "DELETE /api/v1/designations/9?actor=qa.lead" {
		t.Errorf("request = %s", got)
	}
	if !env.Header.OK() || env.Header.Messages[0].Level != model.LevelSuccess {
		t.Errorf("envelope = %+v", env)
	}
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	r := NewResource[model.Plant](NewClient(url, time.Second, nil), model.PlantEntity)
	if _, err := r.Fetch(context.Background(), 1, 10, ""); err == nil {
		t.Error("expected transport error")
	}
}

func TestGet(t *testing.T) {
	r := newTestResource(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/v1/designations/4":
			io.WriteString(w, `{"header":{"errorCount":0,"messages":[]},"designation":{"designationId":4,"designationCode":"QA","designationName":"Quality"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"header":{"errorCount":1,"messages":[{"messageLevel":"Error","messageText":"Designation 5 not found."}]}}`)
		}
	})

	res, err := r.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Record == nil || res.Record.Code != "QA" {
		t.Errorf("record = %+v", res.Record)
	}

	res, err = r.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if res.Header.OK() || res.Record != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestPing(t *testing.T) {
	healthy := true
	var gotID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet || req.URL.Path != "/api/v1/health" {
			t.Errorf("request = %s %s", req.Method, req.URL.Path)
		}
		gotID = req.Header.Get("X-Request-ID")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "down")
			return
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	t.Cleanup(ts.Close)
	c := NewClient(ts.URL, time.Second, nil)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if gotID == "" {
		t.Error("X-Request-ID not sent")
	}

	healthy = false
	var se *StatusError
	if err := c.Ping(context.Background()); !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Errorf("Ping unhealthy = %v, want StatusError 503", err)
	}
}
