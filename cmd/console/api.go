package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/silentwatch/case-engine/internal/handlers"
	"github.com/silentwatch/case-engine/internal/middleware"
	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/locker"
	"github.com/silentwatch/case-engine/pkg/progress"
)

type ConsoleConfig struct {
	APIBaseURL string
	UserID     string
	UserName   string
	CaseID     string
	Timeout    time.Duration
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// apiClient wraps the engine's HTTP API with the identity headers filled in.
type apiClient struct {
	cfg    *ConsoleConfig
	client *http.Client
}

func newAPIClient(cfg *ConsoleConfig) *apiClient {
	return &apiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *apiClient) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.cfg.APIBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, c.cfg.UserID)
	req.Header.Set(middleware.HeaderUserName, c.cfg.UserName)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) health() bool {
	resp, err := c.client.Get(c.cfg.APIBaseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *apiClient) acceptCase() (*progress.CaseProgress, error) {
	var doc progress.CaseProgress
	err := c.do(http.MethodPost, "/v1/cases/"+c.cfg.CaseID+"/accept", nil, &doc)
	return &doc, err
}

func (c *apiClient) getProgress() (*handlers.ProgressView, error) {
	var view handlers.ProgressView
	err := c.do(http.MethodGet, "/v1/cases/"+c.cfg.CaseID+"/progress", nil, &view)
	return &view, err
}

func (c *apiClient) getTranscript(suspectID string) (*handlers.TranscriptResponse, error) {
	var resp handlers.TranscriptResponse
	err := c.do(http.MethodGet, "/v1/cases/"+c.cfg.CaseID+"/suspects/"+suspectID+"/chat", nil, &resp)
	return &resp, err
}

func (c *apiClient) sendMessage(suspectID, message string) (*chat.Response, error) {
	var resp chat.Response
	err := c.do(http.MethodPost, "/v1/cases/"+c.cfg.CaseID+"/suspects/"+suspectID+"/chat",
		chat.Request{Message: message}, &resp)
	return &resp, err
}

func (c *apiClient) pressKey(key string) (*locker.KeypadState, error) {
	var state locker.KeypadState
	err := c.do(http.MethodPost, "/v1/cases/"+c.cfg.CaseID+"/locker",
		map[string]string{"key": key}, &state)
	return &state, err
}

func (c *apiClient) viewEvidence(item string) error {
	return c.do(http.MethodPost, "/v1/cases/"+c.cfg.CaseID+"/evidence/"+item+"/view", nil, nil)
}
