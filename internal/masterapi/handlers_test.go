package masterapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"collabd/internal/master"

	"github.com/gin-gonic/gin"
)

func newTestRouter() (*gin.Engine, *master.State) {
	gin.SetMode(gin.TestMode)
	s := master.New()
	r := gin.New()
	NewHandler(s).Register(r)
	return r, s
}

func TestAddServerRejectsMissingParams(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/addServer", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAddServerThenTokenInUseRoundTrip(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/addServer?IP=127.0.0.1&port=9001", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("addServer status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/tokenInUse/1/1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("tokenInUse status = %d, want 200", w.Code)
	}
}

func TestReplicaRecvTokenUnknownTokenReportsInvalid(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/replicaRecvToken/7/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"valid":false`) {
		t.Fatalf("body = %s, want valid:false", w.Body.String())
	}
}

func TestCreateDocAndConnectNoReplicas(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/createDocAndConnect", strings.NewReader(`{"name":"doc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
