package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/recera/dicomview/internal/config"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	studies := filepath.Join(root, "studies")
	static := filepath.Join(root, "public")

	for path, data := range map[string]string{
		filepath.Join(studies, "ct-001", "IM0002.dcm"): "second",
		filepath.Join(studies, "ct-001", "IM0001.dcm"): "first",
		filepath.Join(studies, "mr-002", "a.dcm"):      "mr",
		filepath.Join(static, "index.html"):            "<html></html>",
		filepath.Join(static, "app.wasm"):              "\x00asm",
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Server.StudyDir = studies
	cfg.Server.StaticDir = static

	s, err := newServer(cfg)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(func() {
		srv.Close()
		s.close()
	})
	return srv, root
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestServe_Exams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv, "/api/exams")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var ids []string
	if err := json.Unmarshal([]byte(body), &ids); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"ct-001", "mr-002"}) {
		t.Errorf("exams = %v", ids)
	}

	resp, body = get(t, srv, "/api/exams/ct-001")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var exam examResponse
	if err := json.Unmarshal([]byte(body), &exam); err != nil {
		t.Fatal(err)
	}
	want := []string{"/files/ct-001/IM0001.dcm", "/files/ct-001/IM0002.dcm"}
	if exam.ID != "ct-001" || !reflect.DeepEqual(exam.URLs, want) {
		t.Errorf("exam = %+v", exam)
	}

	if resp, _ := get(t, srv, "/api/exams/nope"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown exam status = %d", resp.StatusCode)
	}
}

func TestServe_Files(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv, "/files/ct-001/IM0001.dcm")
	if resp.StatusCode != http.StatusOK || body != "first" {
		t.Fatalf("file = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/dicom" {
		t.Errorf("Content-Type = %q", ct)
	}

	if resp, _ := get(t, srv, "/files/ct-001/a..b"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("traversal status = %d, want 403", resp.StatusCode)
	}
	if resp, _ := get(t, srv, "/files/ct-001/IM0003.dcm"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d", resp.StatusCode)
	}
}

func TestServe_Static(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv, "/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "<html>") {
		t.Fatalf("index = %d %q", resp.StatusCode, body)
	}
	resp, _ = get(t, srv, "/app.wasm")
	if ct := resp.Header.Get("Content-Type"); ct != "application/wasm" {
		t.Errorf("wasm Content-Type = %q", ct)
	}
	if resp, _ := get(t, srv, "/missing.js"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset status = %d", resp.StatusCode)
	}
}

func TestServe_LiveUnknownExam(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/live/s1?exam=nope", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFetchExam(t *testing.T) {
	srv, _ := newTestServer(t)
	base, _ := url.Parse(srv.URL)

	urls, err := fetchExam(context.Background(), base, "mr-002")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(urls, []string{"/files/mr-002/a.dcm"}) {
		t.Errorf("urls = %v", urls)
	}
	if _, err := fetchExam(context.Background(), base, "nope"); err == nil {
		t.Error("unknown exam should fail")
	}
}

func TestFetchExam_EscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, examResponse{ID: r.URL.Path, URLs: []string{"/files/x/1.dcm"}})
	}))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)

	urls, err := fetchExam(context.Background(), base, "ct #3 50%")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/exams/ct%20%233%2050%25" {
		t.Errorf("request path = %q", gotPath)
	}
	if len(urls) != 1 {
		t.Errorf("urls = %v", urls)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "dicomview "+versionString()+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.dcm", "a.dcm", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(dir, "notes.txt")

	got, err := expandSources([]string{"https://pacs.example/x.dcm", dir, single})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://pacs.example/x.dcm", filepath.Join(dir, "a.dcm"), filepath.Join(dir, "b.dcm"), single}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sources = %v, want %v", got, want)
	}

	if _, err := expandSources([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("missing path should fail")
	}
}
