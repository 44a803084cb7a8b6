//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/ailab/internal/catalog"
	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/formula"
	"github.com/ashureev/ailab/internal/generator"
	"github.com/ashureev/ailab/internal/report"
	"github.com/ashureev/ailab/internal/session"
	"github.com/ashureev/ailab/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", session.ErrScenarioNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{report.ErrNotFound, http.StatusNotFound},
		{session.ErrScenarioMismatch, http.StatusBadRequest},
		{formula.ErrInvalidInput, http.StatusBadRequest},
		{session.ErrSessionCompleted, http.StatusConflict},
		{session.ErrInteractionFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type testServer struct {
	srv        *httptest.Server
	reportsDir string
}

func newTestServer(t *testing.T, gen generator.Generator) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	dir := t.TempDir()
	repo, err := store.NewSQLite(filepath.Join(dir, "ailab.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	reportsDir := filepath.Join(dir, "reports")
	writer := report.NewWriter(reportsDir, repo, logger)
	mgr := session.NewManager(session.Deps{
		Catalog:   cat,
		Generator: gen,
		Reporter:  writer,
		Logger:    logger,
	})

	r := chi.NewRouter()
	NewHandler(cat, mgr, writer, "test", logger).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, reportsDir: reportsDir}
}

func (s *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	resp, err := http.Post(s.srv.URL+path, "application/json", rdr)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", resp.Request.URL.Path, err)
	}
	return out
}

func TestExperiments(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())

	resp, body := s.get(t, "/experiments")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	list, ok := body["experiments"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("experiments = %v", body["experiments"])
	}
	first := list[0].(map[string]any)
	if first["id"] != "acid_base_titration" {
		t.Fatalf("first experiment = %v", first["id"])
	}

	resp, body = s.get(t, "/experiments/hookes_law")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	steps, _ := body["steps"].([]any)
	if len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}

	resp, body = s.get(t, "/experiments/cold_fusion")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body["error"].(string), "cold_fusion") {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	gen := generator.NewStatic().WithReply(domain.RoleEvaluator, "Well reasoned and careful.")
	s := newTestServer(t, gen)

	resp, start := s.post(t, "/simulate/start", StartRequest{ExperimentID: "hookes_law", StudentName: "Dana"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d: %v", resp.StatusCode, start)
	}
	sid, _ := start["session_id"].(string)
	if sid == "" || start["partner_message"] == "" {
		t.Fatalf("start = %v", start)
	}
	if step := start["first_step"].(map[string]any); step["step_number"].(float64) != 1 {
		t.Fatalf("first_step = %v", step)
	}

	for n := 1; n <= 4; n++ {
		step := n
		resp, body := s.post(t, "/simulate/interact", InteractRequest{
			SessionID:      sid,
			ExperimentID:   "hookes_law",
			StudentMessage: fmt.Sprintf("finished step %d", n),
			CurrentStep:    &step,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("interact %d status = %d: %v", n, resp.StatusCode, body)
		}
		computed := body["wolfram_result"]
		if n < 4 && computed != nil {
			t.Fatalf("step %d: unexpected computation %v", n, computed)
		}
		if n == 4 {
			c, ok := computed.(map[string]any)
			if !ok || c["numeric_result"].(float64) != 30 {
				t.Fatalf("final computation = %v", computed)
			}
			if body["progress"].(float64) != 100 {
				t.Fatalf("progress = %v", body["progress"])
			}
		}
	}

	resp, done := s.post(t, fmt.Sprintf("/simulate/complete?session_id=%s&experiment_id=hookes_law", sid), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d: %v", resp.StatusCode, done)
	}
	if done["status"] != "completed" || done["evaluator_feedback"] != "Well reasoned and careful." {
		t.Fatalf("complete = %v", done)
	}
	rep := done["report"].(map[string]any)
	if rep["saved"] != true {
		t.Fatalf("report = %v", rep)
	}
	if _, err := os.Stat(filepath.Join(s.reportsDir, rep["filename"].(string))); err != nil {
		t.Fatalf("report file: %v", err)
	}

	resp, body := s.post(t, "/simulate/interact", InteractRequest{SessionID: sid, ExperimentID: "hookes_law", StudentMessage: "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("interact after complete = %d: %v", resp.StatusCode, body)
	}

	resp, list := s.get(t, "/reports")
	if resp.StatusCode != http.StatusOK || len(list["reports"].([]any)) != 1 {
		t.Fatalf("reports = %v", list)
	}

	res, err := http.Get(s.srv.URL + "/reports/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	md, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "text/markdown") {
		t.Fatalf("report status = %d type = %s", res.StatusCode, res.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(md), "Well reasoned and careful.") || !strings.Contains(string(md), "Dana") {
		t.Fatalf("report markdown missing content:\n%s", md)
	}

	resp, js := s.get(t, "/reports/"+sid+"?format=json")
	if resp.StatusCode != http.StatusOK || js["report"].(map[string]any)["session_id"] != sid {
		t.Fatalf("report json = %v", js)
	}
}

func TestSimulateErrors(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())

	resp, _ := s.post(t, "/simulate/start", StartRequest{ExperimentID: "cold_fusion"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown experiment start = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/simulate/start", StartRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing experiment start = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/simulate/interact", InteractRequest{SessionID: "nope", ExperimentID: "osmosis", StudentMessage: "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session interact = %d", resp.StatusCode)
	}

	_, start := s.post(t, "/simulate/start", StartRequest{ExperimentID: "osmosis"})
	sid := start["session_id"].(string)

	resp, _ = s.post(t, "/simulate/interact", InteractRequest{SessionID: sid, ExperimentID: "nope", StudentMessage: "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown experiment interact = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/simulate/interact", InteractRequest{SessionID: sid, ExperimentID: "hookes_law", StudentMessage: "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched experiment interact = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/simulate/complete", CompleteRequest{SessionID: sid, ExperimentID: "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown experiment complete = %d", resp.StatusCode)
	}

	res, err := http.Post(s.srv.URL+"/simulate/start", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body = %d", res.StatusCode)
	}
}

func TestInteractOutOfRangeStep(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())
	_, start := s.post(t, "/simulate/start", StartRequest{ExperimentID: "acid_base_titration"})
	sid := start["session_id"].(string)

	resp, body := s.post(t, "/simulate/interact?current_step=42", InteractRequest{SessionID: sid, ExperimentID: "acid_base_titration", StudentMessage: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if body["wolfram_result"] != nil || body["current_step"].(float64) != 2 {
		t.Fatalf("body = %v", body)
	}
}

func TestGenerationFailureIsAbsorbed(t *testing.T) {
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "", generator.ErrUnavailable
	})
	s := newTestServer(t, gen)

	resp, start := s.post(t, "/simulate/start", StartRequest{ExperimentID: "osmosis"})
	if resp.StatusCode != http.StatusOK || start["partner_message"] == "" {
		t.Fatalf("start = %d %v", resp.StatusCode, start)
	}
	sid := start["session_id"].(string)

	resp, done := s.post(t, "/simulate/complete", CompleteRequest{SessionID: sid, ExperimentID: "osmosis"})
	if resp.StatusCode != http.StatusOK || done["status"] != "completed" {
		t.Fatalf("complete = %d %v", resp.StatusCode, done)
	}
}

func TestInteractFailureReturnsInternalError(t *testing.T) {
	gen := generator.Func(func(_ context.Context, req generator.Request) (string, error) {
		if req.Role == domain.RoleMentor {
			panic("mentor backend blew up")
		}
		return "Let's look closer.", nil
	})
	s := newTestServer(t, gen)

	_, start := s.post(t, "/simulate/start", StartRequest{ExperimentID: "hookes_law"})
	sid := start["session_id"].(string)

	resp, body := s.post(t, "/simulate/interact", InteractRequest{SessionID: sid, ExperimentID: "hookes_law", StudentMessage: "the spring stretched a lot"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "interaction failed") || !strings.Contains(msg, "mentor backend blew up") {
		t.Fatalf("error = %q", msg)
	}

	resp, done := s.post(t, "/simulate/complete", CompleteRequest{SessionID: sid, ExperimentID: "hookes_law"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete = %d %v", resp.StatusCode, done)
	}
	rep := done["report"].(map[string]any)
	md, err := os.ReadFile(filepath.Join(s.reportsDir, rep["filename"].(string)))
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	if strings.Contains(string(md), "the spring stretched a lot") {
		t.Fatalf("failed interaction leaked into the report:\n%s", md)
	}
}

func TestCompute(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())

	resp, body := s.post(t, "/compute/"+formula.IDTitration, ComputeRequest{Params: map[string]float64{
		"acid_concentration": 0.1,
		"acid_volume":        20,
		"base_concentration": 0.1,
	}})
	if resp.StatusCode != http.StatusOK || body["numeric_result"].(float64) != 20 {
		t.Fatalf("compute = %d %v", resp.StatusCode, body)
	}

	resp, _ = s.post(t, "/compute/"+formula.IDTitration, ComputeRequest{Params: map[string]float64{"acid_concentration": 0.1}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing params = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/compute/unknown", ComputeRequest{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown formula = %d", resp.StatusCode)
	}

	resp, list := s.get(t, "/formulas")
	if resp.StatusCode != http.StatusOK || len(list["formulas"].([]any)) != len(formula.List()) {
		t.Fatalf("formulas = %v", list)
	}
}

func TestReportsNotFound(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())

	resp, _ := s.get(t, "/reports/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, body := s.get(t, "/reports")
	if resp.StatusCode != http.StatusOK || len(body["reports"].([]any)) != 0 {
		t.Fatalf("reports = %v", body)
	}

	resp, _ = s.get(t, "/reports?limit=-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, generator.NewStatic())
	s.post(t, "/simulate/start", StartRequest{ExperimentID: "osmosis"})

	resp, body := s.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" || body["active_sessions"].(float64) != 1 {
		t.Fatalf("health = %v", body)
	}
}
