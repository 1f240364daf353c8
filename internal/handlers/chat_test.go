package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentwatch/case-engine/internal/services"
	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/dialogue"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/solver"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

func newChatHandler(ms *storage.MockStorage, llm *services.MockLLMAPI) *ChatHandler {
	registry := suspect.Blackwood()
	engine := dialogue.NewEngine(llm, registry,
		suspect.NewManagerWithClock(testClock),
		solver.NewFlowWithClock(testClock, func(n int) int { return 0 }),
		testLogger())
	return NewChatHandler(ms, engine, registry, testLogger())
}

func chatPath(suspectID string) (string, map[string]string) {
	return "/v1/cases/" + testCaseID + "/suspects/" + suspectID + "/chat",
		map[string]string{"caseID": testCaseID, "suspectID": suspectID}
}

func TestChatHandler_TranscriptEmpty(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	h := newChatHandler(ms, services.NewMockLLMAPI())

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodGet, path, "", pv)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
	assert.Contains(t, resp.Greeting, testUserName, "greeting should address the player by name")
}

func TestChatHandler_TranscriptReplays(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, func(doc *progress.CaseProgress) {
		doc.AppendTranscript("rohan",
			chat.Message{Sender: chat.SenderUser, Text: "Where were you?"},
			chat.Message{Sender: chat.SenderAI, Text: "In my study."},
		)
	})
	h := newChatHandler(ms, services.NewMockLLMAPI())

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodGet, path, "", pv)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "In my study.", resp.Messages[1].Text)
	assert.Empty(t, resp.Greeting)
}

func TestChatHandler_Turn(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	llm := services.NewMockLLMAPI()
	llm.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "I was in my study all night.", nil
	}
	h := newChatHandler(ms, llm)

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodPost, path, `{"message":"Where were you?"}`, pv)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "I was in my study all night.", resp.Reply)
	assert.Equal(t, 7, resp.QuestionsRemaining)

	saved, err := ms.LoadProgress(context.Background(), testUserID, testCaseID)
	require.NoError(t, err)
	require.Len(t, saved.Transcript("rohan"), 2)
}

func TestChatHandler_TurnValidation(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	h := newChatHandler(ms, services.NewMockLLMAPI())

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodPost, path, `{"message":""}`, pv)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, h, http.MethodPost, path, `not json`, pv)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_UnknownSuspect(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	h := newChatHandler(ms, services.NewMockLLMAPI())

	path, pv := chatPath("butler")
	rr := serve(t, h, http.MethodPost, path, `{"message":"hi"}`, pv)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatHandler_SaveFailureDeniesInFiction(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	ms.SetSaveError(errors.New("write refused"))
	h := newChatHandler(ms, services.NewMockLLMAPI())

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodPost, path, `{"message":"Where were you?"}`, pv)
	require.Equal(t, http.StatusOK, rr.Code, "gameplay must not 5xx on a failed write")

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, dialogue.MsgDatabaseDenied, resp.Reply)
}

func TestChatHandler_GenerationFailureSkipsSave(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	llm := services.NewMockLLMAPI()
	llm.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", dialogue.ErrMissingAPIKey
	}
	h := newChatHandler(ms, llm)

	path, pv := chatPath("rohan")
	rr := serve(t, h, http.MethodPost, path, `{"message":"Where were you?"}`, pv)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, dialogue.MsgVoiceOffline, resp.Reply)

	saved, err := ms.LoadProgress(context.Background(), testUserID, testCaseID)
	require.NoError(t, err)
	assert.Empty(t, saved.Transcript("rohan"), "failed turns leave no transcript")
}

func TestChatHandler_CaseClosedMirrorsReward(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, func(doc *progress.CaseProgress) {
		doc.KillerIdentified = true
		doc.MotiveIdentified = true
		doc.ModusOperandiIdentified = true
	})
	llm := services.NewMockLLMAPI()
	llm.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "[CORRECT] Case closed, detective.", nil
	}
	h := newChatHandler(ms, llm)

	path, pv := chatPath(suspect.SolverID)
	rr := serve(t, h, http.MethodPost, path, `{"message":"A supernatural power was involved."}`, pv)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.CaseClosed)
	assert.Equal(t, "AAAAA", resp.RewardCode)

	p, err := ms.LoadProfile(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "AAAAA", p.CouponCode)
	assert.Equal(t, testUserName, p.Name)
}
