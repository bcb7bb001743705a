package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"
	"checkin/internal/services"
	hub "checkin/internal/services/websocket"

	"github.com/gorilla/websocket"
)

func TestLiveViewReceivesAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.New(io.Discard)
	hubService := hub.NewHubService(log)
	go hubService.Run(ctx)

	manager := services.NewManager(nil, nil, hubService, log)
	manager.StartRun()

	cfg := &config.Config{MonitorToken: "s3cret", LogDirectory: t.TempDir()}
	server := httptest.NewServer(SetupRoutes(manager, cfg, log))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/view?token=s3cret"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hubService.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	manager.AttemptFinished(ctx, captcha.AttemptReport{
		Attempt: 1,
		Stage:   captcha.StageResolve,
		Err:     &captcha.StageError{Stage: captcha.StageResolve, Err: captcha.ErrIncompleteAssignment},
		Boxes:   2,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var event map[string]interface{}
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("bad event %s: %v", message, err)
	}
	if event["stage"] != "resolve" || event["boxes"] != float64(2) || event["type"] != "attempt" {
		t.Errorf("unexpected event: %s", message)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	log := logger.New(io.Discard)
	manager := services.NewManager(nil, nil, nil, log)
	cfg := &config.Config{MonitorToken: "s3cret"}
	handler := SetupRoutes(manager, cfg, log)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

}
