package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doJSONWithKey(router *gin.Engine, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// provisionAgent runs the full token-then-register handshake and returns the
// agent ID and its permanent key.
func provisionAgent(t *testing.T, router *gin.Engine, name, device string) (string, string) {
	t.Helper()

	rr := doJSON(router, "POST", "/agents/token", dto.GenerateTokenRequest{Name: name})
	require.Equal(t, http.StatusCreated, rr.Code)

	var tokenResp dto.GenerateTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.RegistrationToken)

	rr = doJSON(router, "POST", "/agents/register", dto.RegisterAgentRequest{
		RegistrationToken: tokenResp.RegistrationToken,
		DeviceIdentifier:  device,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var regResp dto.RegisterAgentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &regResp))
	require.NotEmpty(t, regResp.APIKey)
	require.Equal(t, tokenResp.AgentID, regResp.AgentID)

	return regResp.AgentID, regResp.APIKey
}
