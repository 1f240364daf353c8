package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/evidence"
	"github.com/silentwatch/case-engine/pkg/progress"
)

func newEvidenceHandler(ms *storage.MockStorage, intn progress.Intn) *EvidenceHandler {
	return NewEvidenceHandler(ms, evidence.NewTrackerWithClock(testClock, intn), testLogger())
}

func seedProgress(t *testing.T, ms *storage.MockStorage, mutate func(*progress.CaseProgress)) {
	t.Helper()
	doc := progress.New(testUserID, testCaseID, testNow)
	if mutate != nil {
		mutate(doc)
	}
	require.NoError(t, ms.SaveProgress(context.Background(), doc))
}

func TestEvidenceHandler_View(t *testing.T) {
	tests := []struct {
		name           string
		item           string
		mutate         func(*progress.CaseProgress)
		expectedStatus int
	}{
		{
			name:           "postmortem always viewable",
			item:           evidence.ItemPostmortem,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "diary locked before keypad",
			item:           evidence.ItemDiary,
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "diary viewable after unlock",
			item: evidence.ItemDiary,
			mutate: func(doc *progress.CaseProgress) {
				doc.DiaryUnlocked = true
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown item",
			item:           "ransom-note",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := storage.NewMockStorage()
			seedProgress(t, ms, tt.mutate)
			h := newEvidenceHandler(ms, progress.DefaultIntn)

			path := fmt.Sprintf("/v1/cases/%s/evidence/%s/view", testCaseID, tt.item)
			rr := serve(t, http.HandlerFunc(h.View), http.MethodPost, path, "", map[string]string{
				"caseID": testCaseID,
				"item":   tt.item,
			})
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestEvidenceHandler_ViewStampsOnce(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	h := newEvidenceHandler(ms, progress.DefaultIntn)

	path := fmt.Sprintf("/v1/cases/%s/evidence/%s/view", testCaseID, evidence.ItemPostmortem)
	pv := map[string]string{"caseID": testCaseID, "item": evidence.ItemPostmortem}

	rr := serve(t, http.HandlerFunc(h.View), http.MethodPost, path, "", pv)
	require.Equal(t, http.StatusOK, rr.Code)

	saved, err := ms.LoadProgress(context.Background(), testUserID, testCaseID)
	require.NoError(t, err)
	require.True(t, saved.PostmortemViewed)
	require.NotNil(t, saved.PostmortemViewedAt)
	first := *saved.PostmortemViewedAt

	rr = serve(t, http.HandlerFunc(h.View), http.MethodPost, path, "", pv)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first, *saved.PostmortemViewedAt, "repeat views must not move the timestamp")
}

func TestEvidenceHandler_CCTVAccess(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, func(doc *progress.CaseProgress) {
		doc.CCTVUnlocked = true
	})
	h := newEvidenceHandler(ms, func(n int) int { return 2345 })

	rr := serve(t, http.HandlerFunc(h.Access), http.MethodPost, "/v1/cases/"+testCaseID+"/cctv/access", "", map[string]string{"caseID": testCaseID})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp cctvResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, cctvStatusPasswordRequired, resp.Status)

	saved, err := ms.LoadProgress(context.Background(), testUserID, testCaseID)
	require.NoError(t, err)
	assert.Equal(t, "12345", saved.CCTVPassword, "passcode generated on first access")
}

func TestEvidenceHandler_CCTVAccessLocked(t *testing.T) {
	ms := storage.NewMockStorage()
	seedProgress(t, ms, nil)
	h := newEvidenceHandler(ms, progress.DefaultIntn)

	rr := serve(t, http.HandlerFunc(h.Access), http.MethodPost, "/v1/cases/"+testCaseID+"/cctv/access", "", map[string]string{"caseID": testCaseID})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEvidenceHandler_CCTVUnlock(t *testing.T) {
	tests := []struct {
		name           string
		password       string
		expectedStatus int
		expectedState  string
		expectedMsg    string
	}{
		{
			name:           "correct passcode",
			password:       "12345",
			expectedStatus: http.StatusOK,
			expectedState:  cctvStatusOpen,
		},
		{
			name:           "wrong passcode",
			password:       "99999",
			expectedStatus: http.StatusForbidden,
			expectedState:  cctvStatusPasswordRequired,
			expectedMsg:    evidence.AccessDeniedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := storage.NewMockStorage()
			seedProgress(t, ms, func(doc *progress.CaseProgress) {
				doc.CCTVUnlocked = true
				doc.CCTVPassword = "12345"
			})
			h := newEvidenceHandler(ms, progress.DefaultIntn)

			body := fmt.Sprintf(`{"password":%q}`, tt.password)
			rr := serve(t, http.HandlerFunc(h.Unlock), http.MethodPost, "/v1/cases/"+testCaseID+"/cctv/unlock", body, map[string]string{"caseID": testCaseID})
			require.Equal(t, tt.expectedStatus, rr.Code)

			var resp cctvResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedState, resp.Status)
			assert.Equal(t, tt.expectedMsg, resp.Message)

			saved, err := ms.LoadProgress(context.Background(), testUserID, testCaseID)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedState == cctvStatusOpen, saved.CCTVViewed)
		})
	}
}
