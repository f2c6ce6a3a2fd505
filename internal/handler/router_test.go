package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/internal/service"
	"github.com/noah-isme/sma-presence-api/pkg/database"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router  *gin.Engine
	mock    sqlmock.Sqlmock
	metrics *service.MetricsService
}

func newTestServer(t *testing.T, ping error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	metrics := service.NewMetricsService()
	client := repository.NewClient(database.NewClientFromDB(sqlx.NewDb(db, "sqlmock"), database.TxOptions{}, nil),
		repository.Options{Observer: metrics})
	auth := service.NewAuthService(nil, nil, service.AuthConfig{
		Secret:           "test-secret",
		TokenTTL:         time.Hour,
		ClientID:         "attendance-app",
		ClientSecretHash: string(hash),
	})

	router := NewRouter(RouterConfig{APIPrefix: "/api/v1", MaxBodyBytes: 1 << 20}, Handlers{
		Auth:    NewAuthHandler(auth),
		Gateway: NewGatewayHandler(service.NewGatewayService(client, nil, nil), service.NewExportService(nil, nil, nil)),
		Metrics: NewMetricsHandler(metrics, stubPinger{err: ping}),
	}, auth, metrics, zap.NewNop())

	return &testServer{router: router, mock: mock, metrics: metrics}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/token", "", `{"grant_type":"client_credentials","client_id":"attendance-app","client_secret":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data service.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.AccessToken)
	return body.Data.AccessToken
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/ready", "", "").Code)

	down := newTestServer(t, appErrors.ErrConnection)
	rec := down.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CONNECTION_ERROR", decode(t, rec).Error.Code)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodPost, "/auth/token", "", `{"grant_type":"client_credentials","client_id":"attendance-app","client_secret":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec).Error.Code)
}

func TestGatewayRequiresToken(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, "/api/v1/$models", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/api/v1/subject/count", "garbage", "").Code)
}

func TestModelsListsSchema(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodGet, "/api/v1/$models", srv.token(t), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Models     []string `json:"models"`
		Operations []string `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Contains(t, data.Models, "presence")
	assert.Contains(t, data.Operations, "groupBy")
}

func TestExecuteCount(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "subject"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	rec := srv.do(http.MethodPost, "/api/v1/subject/count", srv.token(t), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.JSONEq(t, `4`, string(env.Data))
	assert.Equal(t, "subject", env.Meta["model"])
	assert.Equal(t, uint64(1), srv.metrics.Snapshot().QueriesTotal)
	assert.NoError(t, srv.mock.ExpectationsWereMet())
}

func TestExecuteRejectsUnknownOperationAndBadBody(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.token(t)

	rec := srv.do(http.MethodPost, "/api/v1/subject/truncate", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)

	rec = srv.do(http.MethodPost, "/api/v1/subject/findMany", token, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/v1/grades/findMany", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.mock.ExpectBegin()
	srv.mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "subject"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	srv.mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "teacher"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	srv.mock.ExpectCommit()

	body := `{"operations":[{"model":"subject","operation":"count"},{"model":"teacher","operation":"count"}]}`
	rec := srv.do(http.MethodPost, "/api/v1/$transaction", srv.token(t), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[2,5]`, string(decode(t, rec).Data))
	assert.NoError(t, srv.mock.ExpectationsWereMet())
}

func TestExportStreamsCSV(t *testing.T) {
	srv := newTestServer(t, nil)
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	srv.mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "name", "created_at", "updated_at" FROM "subject"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(1, "Math", created, created))

	rec := srv.do(http.MethodPost, "/api/v1/$export/subject?format=csv", srv.token(t), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="subject_`)
	assert.Equal(t, "id,name,created_at,updated_at\n1,Math,2024-05-01T08:00:00Z,2024-05-01T08:00:00Z\n", rec.Body.String())

	rec = srv.do(http.MethodPost, "/api/v1/$export/subject?format=xlsx", srv.token(t), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, nil)
	big := bytes.Repeat([]byte("a"), 2<<20)
	rec := srv.do(http.MethodPost, "/api/v1/subject/findMany", srv.token(t), `{"where":{"name":"`+string(big)+`"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
