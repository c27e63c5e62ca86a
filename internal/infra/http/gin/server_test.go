package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingchat/internal/app/bootstrap"
	"listingchat/internal/app/dto"
	"listingchat/internal/infra/obs"
	"listingchat/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gw := memory.NewListingGateway()
	_, err := gw.LoadFixtures(context.Background(), []byte(`[{"id":"L","owner":"A"}]`))
	require.NoError(t, err)
	store := memory.NewChatStore()
	buses := bootstrap.Build(bootstrap.Deps{
		UoWFactory:  memory.Factory{Store: store},
		Listings:    gw,
		Outbox:      memory.NewOutbox(),
		Idempotency: memory.NewIdempotencyStore(0),
	})
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Chat:   ChatHandler{Commands: buses.Commands, Queries: buses.Queries},
		Roster: RosterHandler{Commands: buses.Commands, Queries: buses.Queries},
	})
}

func do(r http.Handler, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(obs.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestConversationFlowOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/listings/L/conversations", "B", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	conv := decode[dto.Conversation](t, w)

	w = do(r, http.MethodPost, "/api/v1/listings/L/conversations", "B", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, conv.ID, decode[dto.Conversation](t, w).ID)

	w = do(r, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "B", map[string]string{"body": "hello"}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[dto.ChatMessage](t, w)

	w = do(r, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "B", map[string]string{"body": "hello"}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, msg.ID, decode[dto.ChatMessage](t, w).ID)

	w = do(r, http.MethodGet, "/api/v1/conversations/"+conv.ID, "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msg.ID, decode[dto.Conversation](t, w).LastMessageID)

	w = do(r, http.MethodGet, "/api/v1/inbox", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	inbox := decode[dto.Inbox](t, w)
	require.Len(t, inbox.Entries, 1)
	require.NotNil(t, inbox.Entries[0].LatestMessage)
	assert.Equal(t, "hello", inbox.Entries[0].LatestMessage.Body)

	w = do(r, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?limit=10", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ChatMessageList](t, w).Items, 1)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/listings/L/conversations", "A", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/listings/unknown/conversations", "B", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/conversations/missing", "B", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/listings/L/conversations", "B", nil)
	conv := decode[dto.Conversation](t, w)
	w = do(r, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "D", map[string]string{"body": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/v1/listings/L/participants", "B", map[string]string{"participant_id": "C"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/api/v1/inbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRosterOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/listings/L/participants", "A", map[string]string{"participant_id": "B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.RosterChange](t, w).Added)

	w = do(r, http.MethodGet, "/api/v1/listings/L/participants", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"B"}, decode[dto.ParticipantList](t, w).Participants)

	w = do(r, http.MethodPost, "/api/v1/listings/L/conversations", "B", nil)
	conv := decode[dto.Conversation](t, w)
	w = do(r, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/roster", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.RosterStatus](t, w).OnRoster)
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", "", nil).Code)
}
