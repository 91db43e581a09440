package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/auralane/render-service/internal/middleware"
	"github.com/auralane/render-service/internal/model"
	"github.com/auralane/render-service/internal/service"
	"github.com/auralane/render-service/internal/store"
)

type testApp struct {
	app  *fiber.App
	jobs *store.JobStore
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { asynqClient.Close() })

	jobs := store.NewJobStore(rdb, time.Hour, time.Minute)
	svc := service.NewRenderService(jobs, asynqClient)
	h := NewRenderHandler(svc, validator.New())

	app := fiber.New()
	api := app.Group("/api", middleware.DevAuthMiddleware())
	render := api.Group("/render")
	render.Post("/start", h.Start)
	render.Get("/status/:jobId", h.Status)
	render.Post("/cancel/:jobId", h.Cancel)

	return &testApp{app: app, jobs: jobs}
}

func doRequest(t *testing.T, app *fiber.App, method, path, body, userID string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("undecodable response body: %v", err)
	}
	return out
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func validStartBody() string {
	return fmt.Sprintf(`{
		"trackId": "%s",
		"config": {
			"script": "calm your mind and breathe deeply now",
			"voice": {"provider": "elevenlabs", "voiceId": "voice-1"},
			"solfeggio": {"frequencyHz": 528, "gainDb": -12},
			"output": {"format": "mp3", "quality": "medium", "normalize": true}
		}
	}`, uuid.New().String())
}

func TestStart_Accepted(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", validStartBody(), "user-1")
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "pending" {
		t.Errorf("expected status 'pending', got %v", result["status"])
	}
}

func TestStart_ValidationFailures(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"missing script", fmt.Sprintf(`{
			"trackId": "%s",
			"config": {
				"voice": {"provider": "elevenlabs", "voiceId": "v1"},
				"output": {"format": "mp3", "quality": "medium"}
			}
		}`, uuid.New().String())},
		{"bad format", fmt.Sprintf(`{
			"trackId": "%s",
			"config": {
				"script": "hello",
				"voice": {"provider": "elevenlabs", "voiceId": "v1"},
				"output": {"format": "ogg", "quality": "medium"}
			}
		}`, uuid.New().String())},
		{"trackId not a uuid", `{
			"trackId": "track-1",
			"config": {
				"script": "hello",
				"voice": {"provider": "elevenlabs", "voiceId": "v1"},
				"output": {"format": "mp3", "quality": "medium"}
			}
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", tc.body, "user-1")
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestStart_BinauralRequiresStereo(t *testing.T) {
	ta := setupApp(t)

	body := fmt.Sprintf(`{
		"trackId": "%s",
		"config": {
			"script": "focus now",
			"voice": {"provider": "elevenlabs", "voiceId": "v1"},
			"binaural": {"baseFrequencyHz": 200, "beatFrequencyHz": 7, "gainDb": -12},
			"output": {"format": "mp3", "quality": "medium", "channels": 1}
		}
	}`, uuid.New().String())

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", body, "user-1")
	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]any)
	if errObj == nil || errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", result)
	}
}

func TestStatus_LiveAndUncacheable(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", validStartBody(), "user-1")
	assertStatus(t, resp, http.StatusAccepted)
	jobID, _ := parseJSON(t, resp)["jobId"].(string)

	resp = doRequest(t, ta.app, http.MethodGet, "/api/render/status/"+jobID, "", "user-1")
	assertStatus(t, resp, http.StatusOK)
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control: %q", cc)
	}

	status := parseJSON(t, resp)
	if status["status"] != "pending" {
		t.Errorf("status: %v", status["status"])
	}
	if status["progress"] != float64(0) {
		t.Errorf("progress: %v", status["progress"])
	}

	// Progress written by a worker shows up on the very next poll.
	if _, err := ta.jobs.Claim(context.Background(), jobID, "worker-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := ta.jobs.UpdateProgress(context.Background(), jobID, 30, model.StageVoiceSynthesis); err != nil {
		t.Fatalf("progress write failed: %v", err)
	}

	resp = doRequest(t, ta.app, http.MethodGet, "/api/render/status/"+jobID, "", "user-1")
	status = parseJSON(t, resp)
	if status["progress"] != float64(30) {
		t.Errorf("expected live progress 30, got %v", status["progress"])
	}
	if status["stage"] != model.StageVoiceSynthesis {
		t.Errorf("stage: %v", status["stage"])
	}
}

func TestStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodGet, "/api/render/status/"+uuid.New().String(), "", "user-1")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestStatus_ForeignUserForbidden(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", validStartBody(), "user-1")
	jobID, _ := parseJSON(t, resp)["jobId"].(string)

	resp = doRequest(t, ta.app, http.MethodGet, "/api/render/status/"+jobID, "", "user-2")
	assertStatus(t, resp, http.StatusForbidden)
}

func TestCancel_PendingJob(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", validStartBody(), "user-1")
	jobID, _ := parseJSON(t, resp)["jobId"].(string)

	resp = doRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, `{"reason":"changed my mind"}`, "user-1")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true || result["status"] != "cancelled" {
		t.Errorf("cancel response: %v", result)
	}

	// A cancelled job can never be claimed afterwards.
	if _, err := ta.jobs.Claim(context.Background(), jobID, "worker-1"); err == nil {
		t.Error("cancelled job was claimable")
	}
}

func TestCancel_CompletedJobConflicts(t *testing.T) {
	ta := setupApp(t)
	ctx := context.Background()

	resp := doRequest(t, ta.app, http.MethodPost, "/api/render/start", validStartBody(), "user-1")
	jobID, _ := parseJSON(t, resp)["jobId"].(string)

	if _, err := ta.jobs.Claim(ctx, jobID, "worker-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	result := &model.RenderResult{URL: "https://cdn.example/out.mp3", Format: model.FormatMP3}
	if err := ta.jobs.Complete(ctx, jobID, result); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	resp = doRequest(t, ta.app, http.MethodPost, "/api/render/cancel/"+jobID, "", "user-1")
	assertStatus(t, resp, http.StatusConflict)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]any)
	if errObj == nil || errObj["code"] != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %v", body)
	}
	msg, _ := errObj["message"].(string)
	if !strings.Contains(msg, "completed") {
		t.Errorf("conflict must name the blocking status, got %q", msg)
	}
}
