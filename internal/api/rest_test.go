package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/buonappetort/rex/internal/ingest"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/service"
	"github.com/buonappetort/rex/internal/storage"
	"github.com/buonappetort/rex/internal/store"
)

func newTestService(t *testing.T) (*service.Service, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	tick := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	st := store.New(backend, store.WithClock(clock))
	return service.New(st, nil, service.WithIngest(ingest.NewRunner(dir, st))), dir
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	svc, dir := newTestService(t)
	srv := httptest.NewServer(NewHandler(Deps{Service: svc}))
	t.Cleanup(srv.Close)
	return srv, dir
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func createItem(t *testing.T, base, owner, title string) model.Item {
	t.Helper()
	body := fmt.Sprintf(`{"ownerId":%q,"title":%q,"category":"Book","tags":["x"]}`, owner, title)
	resp := postJSON(t, base+"/api/rex", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var it model.Item
	decode(t, resp, &it)
	return it
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv.URL+"/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateAndGet(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createItem(t, srv.URL, "u1", "Dune")
	if created.ID == "" || created.CreatedAt == "" {
		t.Fatalf("created item missing id or createdAt: %+v", created)
	}

	resp := get(t, srv.URL+"/api/rex/"+created.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got model.Item
	decode(t, resp, &got)
	if got.ID != created.ID || got.Title != "Dune" || got.OwnerID != "u1" {
		t.Errorf("got %+v", got)
	}
}

func TestCreate_LegacyUserIDField(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/rex", `{"userId":"u9","title":"T","category":"C"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var it model.Item
	decode(t, resp, &it)
	if it.OwnerID != "u9" {
		t.Errorf("OwnerID = %q", it.OwnerID)
	}
}

func TestCreate_MissingFieldIsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/rex", `{"ownerId":"u1","title":"T"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorBody
	decode(t, resp, &body)
	if body.Error.Type != "bad_input" || !strings.Contains(body.Error.Message, "category") {
		t.Errorf("error = %+v", body.Error)
	}

	list := get(t, srv.URL+"/api/rex")
	var items []model.Item
	decode(t, list, &items)
	if len(items) != 0 {
		t.Errorf("failed create persisted %d items", len(items))
	}
}

func TestCreate_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/rex", `{"ownerId":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGet_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv.URL+"/api/rex/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body errorBody
	decode(t, resp, &body)
	if body.Error.Type != "not_found" {
		t.Errorf("type = %q", body.Error.Type)
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv.URL+"/api/rex")
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestList_FilterOrderAndPage(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := range 5 {
		createItem(t, srv.URL, "u1", fmt.Sprintf("item-%d", i))
	}
	createItem(t, srv.URL, "u2", "other")

	resp := get(t, srv.URL+"/api/rex?ownerId=u1&order=desc")
	var items []model.Item
	decode(t, resp, &items)
	if len(items) != 5 || items[0].Title != "item-4" {
		t.Fatalf("desc listing = %d items, first %q", len(items), items[0].Title)
	}

	resp = get(t, srv.URL+"/api/rex?userId=u1&page=2&limit=2")
	var page struct {
		Items   []model.Item `json:"items"`
		Page    int          `json:"page"`
		Limit   int          `json:"limit"`
		Total   int          `json:"total"`
		HasMore bool         `json:"hasMore"`
	}
	decode(t, resp, &page)
	if page.Total != 5 || page.Page != 2 || page.Limit != 2 || !page.HasMore {
		t.Errorf("page = %+v", page)
	}
	if len(page.Items) != 2 || page.Items[0].Title != "item-2" {
		t.Errorf("page items = %+v", page.Items)
	}

	resp = get(t, srv.URL+"/api/rex?page=9&limit=2")
	decode(t, resp, &page)
	if len(page.Items) != 0 || page.HasMore {
		t.Errorf("out of range page = %+v", page)
	}
}

func TestList_PageWithoutLimitIsUnpaginated(t *testing.T) {
	srv, _ := newTestServer(t)
	createItem(t, srv.URL, "u1", "a")
	resp := get(t, srv.URL+"/api/rex?page=1&limit=abc")
	var items []model.Item
	decode(t, resp, &items)
	if len(items) != 1 {
		t.Errorf("got %d items", len(items))
	}
}

func TestSeedUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/seed-user", `{"userId":"new-user"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var first struct {
		OwnerID string `json:"ownerId"`
		Seeded  int    `json:"seeded"`
	}
	decode(t, resp, &first)
	if first.OwnerID != "new-user" || first.Seeded != store.TemplateCount() {
		t.Errorf("first seed = %+v", first)
	}

	resp = postJSON(t, srv.URL+"/api/seed-user", `{"ownerId":"new-user"}`)
	var second struct {
		Seeded int `json:"seeded"`
	}
	decode(t, resp, &second)
	if second.Seeded != 0 {
		t.Errorf("second seed added %d", second.Seeded)
	}
}

func TestSeedUser_MissingOwner(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/seed-user", `{"ownerId":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/seed-user", `{"ownerId":"u1"}`)
	createItem(t, srv.URL, "u2", "Sushi Atlas")

	resp := postJSON(t, srv.URL+"/api/search", `{"query":"Sushi","userId":"u1","useLLM":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res struct {
		Query    string       `json:"query"`
		Keywords []string     `json:"keywords"`
		Results  []model.Item `json:"results"`
	}
	decode(t, resp, &res)
	if res.Query != "Sushi" || len(res.Keywords) != 1 || res.Keywords[0] != "sushi" {
		t.Errorf("query/keywords = %q %v", res.Query, res.Keywords)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "Best Sushi in Town" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestSearch_EmptyQueryReturnsAll(t *testing.T) {
	srv, _ := newTestServer(t)
	createItem(t, srv.URL, "u1", "a")
	createItem(t, srv.URL, "u1", "b")

	resp := postJSON(t, srv.URL+"/api/search", `{}`)
	var res struct {
		Keywords []string     `json:"keywords"`
		Results  []model.Item `json:"results"`
	}
	decode(t, resp, &res)
	if res.Keywords == nil || len(res.Keywords) != 0 {
		t.Errorf("keywords = %v, want empty list", res.Keywords)
	}
	if len(res.Results) != 2 {
		t.Errorf("got %d results, want 2", len(res.Results))
	}
}

func TestLoadDataset(t *testing.T) {
	srv, dir := newTestServer(t)
	rows := strings.Join([]string{
		`{"rating":5.0,"asin":"B001","user_id":"r1","title":"Great","text":"Loved it"}`,
		`{"rating":3.0,"asin":"B002","user_id":"r2","title":"Meh","text":"ok"}`,
		`not json`,
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "amazon_reviews_2023_Books.jsonl"), []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, srv.URL+"/api/load-mcauley-data", `{"categories":["books"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res struct {
		Added int      `json:"added"`
		Total int      `json:"total"`
		Files []string `json:"files"`
	}
	decode(t, resp, &res)
	if res.Added != 1 || res.Total != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Files) != 1 || res.Files[0] != "amazon_reviews_2023_Books.jsonl" {
		t.Errorf("files = %v", res.Files)
	}

	resp = postJSON(t, srv.URL+"/api/load-mcauley-data", `{"fiveStarOnly":false,"limit":10}`)
	decode(t, resp, &res)
	if res.Added != 2 || res.Total != 3 {
		t.Errorf("second load = %+v", res)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	createItem(t, srv.URL, "u1", "a")
	resp := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "rex_items_created_total") {
		t.Error("metrics output missing rex_items_created_total")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/rex", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}
