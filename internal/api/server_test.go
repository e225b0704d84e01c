package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wavestack/automod/internal/config"
	"github.com/wavestack/automod/internal/ledger"
	"github.com/wavestack/automod/internal/moderation"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	filter := moderation.NewFilter(cfg.BannedWords, cfg.BannedPhrases)
	toxicity := moderation.NewToxicityDetector(nil, nil, cfg.ToxicityThreshold)
	spam := moderation.NewSpamDetector(cfg)
	engine := moderation.NewEngine(cfg, filter, toxicity, spam, ledger.NewMemory())

	s := NewServer(cfg, engine, nil, nil, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCheckEndpoint_CleanMessage(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/moderate/check",
		`{"message":"hello chat","user_id":"u1","username":"alice","platform":"twitch","channel_id":"c1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decision moderation.Decision
	decode(t, resp, &decision)

	if decision.ShouldDelete || decision.ShouldTimeout || decision.ShouldBan {
		t.Errorf("clean message got enforcement: %+v", decision)
	}
	if len(decision.Violations) != 0 {
		t.Errorf("Violations = %v, want empty", decision.Violations)
	}
}

func TestCheckEndpoint_FlaggedMessage(t *testing.T) {
	s, ts := newTestServer(t, func(c *config.Config) {
		c.BannedWords = []string{"badword"}
	})

	var flagged []moderation.Request
	s.OnFlagged = func(req moderation.Request, decision moderation.Decision) {
		flagged = append(flagged, req)
	}

	resp := postJSON(t, ts.URL+"/api/v1/moderate/check",
		`{"message":"such a badword","user_id":"u1","username":"bob","platform":"discord","channel_id":"c1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decision moderation.Decision
	decode(t, resp, &decision)

	if !decision.ShouldDelete {
		t.Error("ShouldDelete = false for banned word")
	}
	if decision.Scores["filter"] != 1.0 {
		t.Errorf(`Scores["filter"] = %v, want 1.0`, decision.Scores["filter"])
	}
	if len(flagged) != 1 || flagged[0].UserID != "u1" {
		t.Errorf("OnFlagged calls = %+v, want one for u1", flagged)
	}
}

func TestCheckEndpoint_BadRequests(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"missing user id", `{"message":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/moderate/check", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestFilterEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	// Add a word, then verify a message containing it is flagged.
	resp := postJSON(t, ts.URL+"/api/v1/moderate/filter/add-word?word=SpamWord", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add-word status = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/moderate/check",
		`{"message":"get SpamWord here","user_id":"u1","username":"x","platform":"twitch","channel_id":"c1"}`)
	var decision moderation.Decision
	decode(t, resp, &decision)
	if len(decision.Violations) == 0 {
		t.Error("message with added word not flagged")
	}

	// The word list includes it, lowercased.
	resp, err := http.Get(ts.URL + "/api/v1/moderate/filter/words")
	if err != nil {
		t.Fatal(err)
	}
	var words struct {
		BannedWords []string `json:"banned_words"`
	}
	decode(t, resp, &words)
	if len(words.BannedWords) != 1 || words.BannedWords[0] != "spamword" {
		t.Errorf("banned_words = %v, want [spamword]", words.BannedWords)
	}

	// Remove it and verify the same message passes.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/moderate/filter/remove-word?word=spamword", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove-word status = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/moderate/check",
		`{"message":"get SpamWord here","user_id":"u1","username":"x","platform":"twitch","channel_id":"c1"}`)
	decode(t, resp, &decision)
	if len(decision.Violations) != 0 {
		t.Errorf("message flagged after word removal: %v", decision.Violations)
	}

	// Missing query parameter is a bad request.
	resp = postJSON(t, ts.URL+"/api/v1/moderate/filter/add-word", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("add-word without word: status = %d, want 400", resp.StatusCode)
	}
}

func TestAddPhraseEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/moderate/filter/add-phrase?phrase=buy+my+course", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add-phrase status = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/moderate/check",
		`{"message":"please Buy My Course today","user_id":"u1","username":"x","platform":"twitch","channel_id":"c1"}`)
	var decision moderation.Decision
	decode(t, resp, &decision)
	if len(decision.Violations) == 0 {
		t.Error("message with added phrase not flagged")
	}
}

func TestViolationEndpoints(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.BannedWords = []string{"badword"}
	})

	// Two violating messages build up the count.
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/api/v1/moderate/check",
			`{"message":"badword","user_id":"offender","username":"x","platform":"twitch","channel_id":"c1"}`)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/v1/moderate/violations/offender")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		UserID         string `json:"user_id"`
		ViolationCount int    `json:"violation_count"`
	}
	decode(t, resp, &got)
	if got.UserID != "offender" || got.ViolationCount != 2 {
		t.Errorf("violations = %+v, want offender/2", got)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/moderate/violations/offender", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/moderate/violations/offender")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &got)
	if got.ViolationCount != 0 {
		t.Errorf("violation_count after clear = %d, want 0", got.ViolationCount)
	}
}

func TestAuditRecentDisabled(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/moderate/audit/recent")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestInfoAndHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	var info struct {
		Service string `json:"service"`
		Status  string `json:"status"`
	}
	decode(t, resp, &info)
	if info.Service != ServiceName || info.Status != "running" {
		t.Errorf("info = %+v", info)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
