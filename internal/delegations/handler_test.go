package delegations

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newDelegationRouter(repo Repo, address string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	fakeAuth := func(c *gin.Context) {
		c.Set("walletAddress", address)
		c.Next()
	}
	NewHandler(repo).RegisterRoutes(r.Group("/api/v1"), fakeAuth)
	return r
}

func TestDelegationLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	router := newDelegationRouter(repo, "0xdelegator")
	path := "/api/v1/delegations/0xGov/10143"

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before opt-in, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPut, path, bytes.NewReader([]byte(`{"riskThreshold":45,"requiresApproval":false}`))))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, path, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	d, err := repo.GetByKey(testContext(t), Key{DelegatorAddress: "0xdelegator", DAOGovernor: "0xgov", ChainID: 10143})
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if d.Status != StatusRevoked {
		t.Fatalf("expected REVOKED, got %s", d.Status)
	}
}

func TestDelegationValidation(t *testing.T) {
	router := newDelegationRouter(NewMemoryRepo(), "0xdelegator")

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/delegations/0xGov/abc", "", http.StatusBadRequest},
		{http.MethodPut, "/api/v1/delegations/0xGov/1", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/api/v1/delegations/0xGov/1", `{"riskThreshold":150}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/v1/delegations/0xGov/1", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body))))
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}

	anon := newDelegationRouter(NewMemoryRepo(), "")
	resp := httptest.NewRecorder()
	anon.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/delegations/0xGov/1", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without address, got %d", resp.Code)
	}
}
