package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("owner", "repo", "secret")

	if client.owner != "owner" {
		t.Errorf("expected owner to be 'owner', got '%s'", client.owner)
	}
	if client.repo != "repo" {
		t.Errorf("expected repo to be 'repo', got '%s'", client.repo)
	}
	if client.token != "secret" {
		t.Errorf("expected token to be set")
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}
}

func testClient(server *httptest.Server) *Client {
	client := NewClient("owner", "repo", "secret")
	client.baseURL = server.URL
	client.httpClient = server.Client()
	return client
}

func TestGetReleaseByTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/releases/tags/v1.2.3" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		json.NewEncoder(w).Encode(Release{
			ID:        7,
			TagName:   "v1.2.3",
			UploadURL: "https://uploads.example/assets{?name,label}",
		})
	}))
	defer server.Close()

	client := testClient(server)

	release, err := client.GetReleaseByTag(context.Background(), "v1.2.3")
	if err != nil {
		t.Fatalf("GetReleaseByTag() unexpected error: %v", err)
	}
	if release == nil || release.ID != 7 {
		t.Fatalf("unexpected release: %+v", release)
	}

	// Unknown tag maps to (nil, nil), not an error
	release, err = client.GetReleaseByTag(context.Background(), "v9.9.9")
	if err != nil {
		t.Fatalf("GetReleaseByTag() unexpected error for missing tag: %v", err)
	}
	if release != nil {
		t.Errorf("expected nil release for missing tag, got %+v", release)
	}
}

func TestCreateRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/owner/repo/releases" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["tag_name"] != "v2.0.0" {
			t.Errorf("unexpected tag_name: %q", payload["tag_name"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Release{ID: 3, TagName: "v2.0.0"})
	}))
	defer server.Close()

	release, err := testClient(server).CreateRelease(context.Background(), "v2.0.0")
	if err != nil {
		t.Fatalf("CreateRelease() unexpected error: %v", err)
	}
	if release.ID != 3 {
		t.Errorf("unexpected release: %+v", release)
	}
}

func TestCreateReleaseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	if _, err := testClient(server).CreateRelease(context.Background(), "v2.0.0"); err == nil {
		t.Error("expected error from API failure")
	}
}

func TestUploadAsset(t *testing.T) {
	assetPath := filepath.Join(t.TempDir(), "project.tar.gz")
	if err := os.WriteFile(assetPath, []byte("archive bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	var gotBody string
	var gotName string
	var gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotName = r.URL.Query().Get("name")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := testClient(server)
	release := &Release{UploadURL: server.URL + "/uploads/assets{?name,label}"}

	err := client.UploadAsset(context.Background(), release, assetPath, "application/gzip")
	if err != nil {
		t.Fatalf("UploadAsset() unexpected error: %v", err)
	}

	if gotBody != "archive bytes" {
		t.Errorf("unexpected uploaded body: %q", gotBody)
	}
	if gotName != "project.tar.gz" {
		t.Errorf("unexpected asset name: %q", gotName)
	}
	if gotType != "application/gzip" {
		t.Errorf("unexpected content type: %q", gotType)
	}
}

func TestExpandUploadURL(t *testing.T) {
	got, err := expandUploadURL("https://uploads.example/repos/o/r/releases/1/assets{?name,label}", "out.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://uploads.example/repos/o/r/releases/1/assets?name=out.tar.gz"
	if got != want {
		t.Errorf("expandUploadURL() = %q, want %q", got, want)
	}
}
