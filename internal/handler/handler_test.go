package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/router"
	"github.com/stemsi/mocktest-backend/internal/scoring"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "admin-secret"

type env struct {
	srv   *httptest.Server
	store *store
	auth  *service.AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := &config.Config{
		GinMode:           gin.TestMode,
		JWTSecret:         "handler-test-secret",
		JWTExpiry:         time.Hour,
		AttemptTokenGrace: time.Hour,
		BcryptCost:        bcrypt.MinCost,
		AdminPasswordHash: string(hash),
		MaxUploadBytes:    1 << 20,
		TickInterval:      time.Second,
		PaperCacheTTL:     time.Minute,
		SubmitTimeout:     time.Second,
		CorrectMark:       scoring.DefaultCorrectMark,
		IncorrectPenalty:  scoring.DefaultIncorrectPenalty,
		FreeUnanswered:    scoring.DefaultFreeUnanswered,
		UnansweredPenalty: scoring.DefaultUnansweredPenalty,
	}
	validator.Setup()
	log := zerolog.Nop()

	s := newStore()
	sessions := session.NewManager(cfg.TickInterval, log)
	t.Cleanup(sessions.Close)

	authService := service.NewAuthService(cfg)
	tests := service.NewTestService(testRepo{s}, questionRepo{s}, nil, cfg, log)
	exams := service.NewExamService(tests, attemptRepo{s}, responseRepo{s}, resultRepo{s}, sessions, nil, cfg, log)
	results := service.NewResultService(tests, attemptRepo{s}, responseRepo{s}, resultRepo{s}, log)

	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Test:   handler.NewTestHandler(tests, cfg.MaxUploadBytes),
		Exam:   handler.NewExamHandler(exams, authService),
		Result: handler.NewResultHandler(results),
		WS:     handler.NewWSHandler(exams, log, nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(router.SetupRouter(ctx, authService, handlers, cfg, log))
	t.Cleanup(srv.Close)

	return &env{srv: srv, store: s, auth: authService}
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

func (e *env) send(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp.StatusCode, env
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.auth.GenerateAdminToken()
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return token
}

func (e *env) upload(t *testing.T, token, filename, content string, fields map[string]string) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/v1/admin/tests/import", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(t, req, token)
}

// sampleCSV builds n questions whose answer key is always A.
func sampleCSV(n int) string {
	var b strings.Builder
	b.WriteString("question_number,question_text,option_a,option_b,option_c,option_d,correct_answer,explanation\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,Question %d,a,b,c,d,A,because\n", i, i)
	}
	return b.String()
}

func (e *env) importTest(t *testing.T, n int) model.Test {
	t.Helper()
	status, res := e.upload(t, e.adminToken(t), "paper.csv", sampleCSV(n), map[string]string{
		"name":             "Sample",
		"duration_minutes": "30",
	})
	if status != http.StatusCreated {
		t.Fatalf("import status = %d, error = %+v", status, res.Error)
	}
	var data struct {
		Test model.Test `json:"test"`
	}
	mustDecode(t, res.Data, &data)
	return data.Test
}

type started struct {
	Attempt model.ExamAttempt `json:"attempt"`
	Token   string            `json:"token"`
	State   session.Snapshot  `json:"state"`
}

func (e *env) start(t *testing.T, testID string) started {
	t.Helper()
	status, res := e.do(t, http.MethodPost, "/api/v1/tests/"+testID+"/attempts", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, error = %+v", status, res.Error)
	}
	var s started
	mustDecode(t, res.Data, &s)
	return s
}

func mustDecode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

func stateOf(t *testing.T, res envelope) session.Snapshot {
	t.Helper()
	var data struct {
		State session.Snapshot `json:"state"`
	}
	mustDecode(t, res.Data, &data)
	return data.State
}

func wantError(t *testing.T, status int, res envelope, wantStatus int, code response.ErrCode) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status = %d, want %d (error %+v)", status, wantStatus, res.Error)
	}
	if res.Error == nil || res.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", res.Error, code)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	status, res := e.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || res.Error != nil {
		t.Fatalf("health = %d %+v", status, res.Error)
	}
}

func TestAdminLogin(t *testing.T) {
	e := newEnv(t)

	status, res := e.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{"password": adminPassword})
	if status != http.StatusOK {
		t.Fatalf("login status = %d, error = %+v", status, res.Error)
	}
	var data struct {
		Token string `json:"token"`
	}
	mustDecode(t, res.Data, &data)
	claims, err := e.auth.ValidateToken(data.Token)
	if err != nil || claims.TokenType != service.TokenTypeAdmin {
		t.Fatalf("claims = %+v, err = %v", claims, err)
	}

	status, res = e.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{"password": "wrong-password"})
	wantError(t, status, res, http.StatusUnauthorized, response.ErrInvalidCredentials)

	status, res = e.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{})
	wantError(t, status, res, http.StatusBadRequest, response.ErrValidation)
}

func TestImportTest(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(t)
	fields := map[string]string{"name": "Mock 1", "duration_minutes": "45", "year": "2024"}

	t.Run("accepted", func(t *testing.T) {
		status, res := e.upload(t, admin, "paper.csv", sampleCSV(3), fields)
		if status != http.StatusCreated {
			t.Fatalf("status = %d, error = %+v", status, res.Error)
		}
		var data struct {
			Test model.Test `json:"test"`
		}
		mustDecode(t, res.Data, &data)
		if data.Test.QuestionCount != 3 || data.Test.Year == nil || *data.Test.Year != 2024 {
			t.Fatalf("test = %+v", data.Test)
		}
	})

	t.Run("rejected with row errors", func(t *testing.T) {
		csv := "question_text,option_a,option_b,option_c,option_d,correct_answer\n" +
			"Q1,a,b,c,d,A\n" +
			"Q2,a,b,c,d,Z\n"
		status, res := e.upload(t, admin, "paper.csv", csv, fields)
		wantError(t, status, res, http.StatusBadRequest, response.ErrImportRejected)
		if len(res.Error.Errors) != 1 || !strings.HasPrefix(res.Error.Errors[0], "Row 3") {
			t.Fatalf("errors = %v", res.Error.Errors)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		status, res := e.upload(t, admin, "", "", fields)
		wantError(t, status, res, http.StatusBadRequest, response.ErrFileRequired)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		status, res := e.upload(t, admin, "paper.pdf", "whatever", fields)
		wantError(t, status, res, http.StatusBadRequest, response.ErrUnsupportedFile)
	})

	t.Run("missing form fields", func(t *testing.T) {
		status, res := e.upload(t, admin, "paper.csv", sampleCSV(1), map[string]string{"name": "x"})
		wantError(t, status, res, http.StatusBadRequest, response.ErrValidation)
		if _, ok := res.Error.Fields["duration_minutes"]; !ok {
			t.Fatalf("fields = %v", res.Error.Fields)
		}
	})

	t.Run("requires admin token", func(t *testing.T) {
		status, res := e.upload(t, "", "paper.csv", sampleCSV(1), fields)
		wantError(t, status, res, http.StatusUnauthorized, response.ErrTokenRequired)
	})
}

func TestCatalogue(t *testing.T) {
	e := newEnv(t)
	test := e.importTest(t, 2)
	id := test.ID.String()

	status, res := e.do(t, http.MethodGet, "/api/v1/tests", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var list struct {
		Tests []model.Test `json:"tests"`
	}
	mustDecode(t, res.Data, &list)
	if len(list.Tests) != 1 || list.Tests[0].ID != test.ID {
		t.Fatalf("tests = %+v", list.Tests)
	}

	status, _ = e.do(t, http.MethodGet, "/api/v1/tests/"+id, "", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}

	status, res = e.do(t, http.MethodGet, "/api/v1/tests/not-a-uuid", "", nil)
	wantError(t, status, res, http.StatusBadRequest, response.ErrInvalidID)

	admin := e.adminToken(t)
	status, res = e.do(t, http.MethodGet, "/api/v1/admin/tests/"+id+"/questions", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("questions status = %d", status)
	}
	var paper struct {
		Questions []model.Question `json:"questions"`
	}
	mustDecode(t, res.Data, &paper)
	if len(paper.Questions) != 2 || paper.Questions[0].CorrectAnswer != "A" {
		t.Fatalf("questions = %+v", paper.Questions)
	}

	status, _ = e.do(t, http.MethodDelete, "/api/v1/admin/tests/"+id, admin, nil)
	if status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}
	status, res = e.do(t, http.MethodGet, "/api/v1/tests/"+id, "", nil)
	wantError(t, status, res, http.StatusNotFound, response.ErrNotFound)
	status, res = e.do(t, http.MethodDelete, "/api/v1/admin/tests/"+id, admin, nil)
	wantError(t, status, res, http.StatusNotFound, response.ErrNotFound)
}

func TestAttemptFlow(t *testing.T) {
	e := newEnv(t)
	test := e.importTest(t, 3)
	s := e.start(t, test.ID.String())
	base := "/api/v1/attempts/" + s.Attempt.ID.String()

	if s.State.State != session.StateActive || s.State.CurrentIndex != 0 || s.State.RemainingSeconds != 30*60 {
		t.Fatalf("initial state = %+v", s.State)
	}

	status, res := e.do(t, http.MethodPost, base+"/stage", s.Token, map[string]string{"option": "a"})
	if status != http.StatusOK {
		t.Fatalf("stage status = %d, error = %+v", status, res.Error)
	}
	if st := stateOf(t, res); st.StagedOption == nil || *st.StagedOption != "A" {
		t.Fatalf("staged = %v", st.StagedOption)
	}

	status, res = e.do(t, http.MethodPost, base+"/commit", s.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("commit status = %d", status)
	}
	st := stateOf(t, res)
	if st.CurrentIndex != 1 || st.Summary.Answered != 1 {
		t.Fatalf("after commit = index %d, summary %+v", st.CurrentIndex, st.Summary)
	}

	status, res = e.do(t, http.MethodPost, base+"/stage", s.Token, map[string]string{"option": "E"})
	wantError(t, status, res, http.StatusBadRequest, response.ErrInvalidOption)
	status, res = e.do(t, http.MethodPost, base+"/stage", s.Token, map[string]string{"option": "z"})
	wantError(t, status, res, http.StatusBadRequest, response.ErrInvalidOption)
	status, res = e.do(t, http.MethodPost, base+"/stage", s.Token, map[string]string{"option": "AB"})
	wantError(t, status, res, http.StatusBadRequest, response.ErrValidation)

	status, res = e.do(t, http.MethodPost, base+"/navigate", s.Token, map[string]int{"index": 5})
	wantError(t, status, res, http.StatusBadRequest, response.ErrInvalidIndex)

	status, res = e.do(t, http.MethodPost, base+"/navigate", s.Token, map[string]int{"index": 2})
	if status != http.StatusOK || stateOf(t, res).CurrentIndex != 2 {
		t.Fatalf("navigate = %d", status)
	}

	status, res = e.do(t, http.MethodPost, base+"/mark", s.Token, nil)
	if status != http.StatusOK || stateOf(t, res).Summary.Marked != 1 {
		t.Fatalf("mark = %d", status)
	}

	status, res = e.do(t, http.MethodPost, base+"/zoom", s.Token, map[string]int{"level": 500})
	if status != http.StatusOK || stateOf(t, res).ZoomLevel != session.MaxZoom {
		t.Fatalf("zoom = %d", status)
	}

	status, res = e.do(t, http.MethodGet, base+"/result", s.Token, nil)
	wantError(t, status, res, http.StatusConflict, response.ErrAttemptNotFinished)

	status, res = e.do(t, http.MethodPost, base+"/submit", s.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("submit status = %d, error = %+v", status, res.Error)
	}
	var first struct {
		Result model.ExamResult `json:"result"`
	}
	mustDecode(t, res.Data, &first)
	r := first.Result
	if r.CorrectCount != 1 || r.CorrectCount+r.IncorrectCount+r.UnansweredCount != 3 {
		t.Fatalf("result = %+v", r)
	}

	status, res = e.do(t, http.MethodPost, base+"/submit", s.Token, nil)
	var second struct {
		Result model.ExamResult `json:"result"`
	}
	mustDecode(t, res.Data, &second)
	if status != http.StatusOK || second.Result.ID != r.ID {
		t.Fatalf("second submit = %d, id %s want %s", status, second.Result.ID, r.ID)
	}

	status, res = e.do(t, http.MethodPost, base+"/commit", s.Token, nil)
	wantError(t, status, res, http.StatusConflict, response.ErrAttemptSubmitted)

	status, res = e.do(t, http.MethodGet, base+"/result", s.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("result status = %d", status)
	}
	var view service.ResultView
	mustDecode(t, res.Data, &view)
	if !view.Attempt.IsSubmitted || view.Test.ID != test.ID {
		t.Fatalf("view = %+v", view)
	}

	status, res = e.do(t, http.MethodGet, base+"/solutions", s.Token, nil)
	var sol struct {
		Solutions []model.SolutionItem `json:"solutions"`
	}
	mustDecode(t, res.Data, &sol)
	if status != http.StatusOK || len(sol.Solutions) != 3 || sol.Solutions[0].Outcome != string(scoring.OutcomeCorrect) {
		t.Fatalf("solutions = %d %+v", status, sol.Solutions)
	}

	status, res = e.do(t, http.MethodGet, "/api/v1/admin/tests/"+test.ID.String()+"/results?page=1&per_page=10", e.adminToken(t), nil)
	if status != http.StatusOK || res.Pagination == nil || res.Pagination.TotalItems != 1 {
		t.Fatalf("admin results = %d %+v", status, res.Pagination)
	}
}

func TestEndSessionResumes(t *testing.T) {
	e := newEnv(t)
	test := e.importTest(t, 2)
	s := e.start(t, test.ID.String())
	base := "/api/v1/attempts/" + s.Attempt.ID.String()

	e.do(t, http.MethodPost, base+"/stage", s.Token, map[string]string{"option": "B"})
	e.do(t, http.MethodPost, base+"/commit", s.Token, nil)

	status, _ := e.do(t, http.MethodDelete, base+"/session", s.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("end session = %d", status)
	}

	// No Redis here, so the commit was never mirrored and the resumed
	// session starts from the seeded rows.
	status, res := e.do(t, http.MethodGet, base+"/state", s.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("resume status = %d, error = %+v", status, res.Error)
	}
	st := stateOf(t, res)
	if st.State != session.StateActive || st.Summary.Total != 2 || st.Summary.Answered != 0 {
		t.Fatalf("resumed = %+v", st)
	}
}

func TestAttemptAuthorization(t *testing.T) {
	e := newEnv(t)
	test := e.importTest(t, 1)
	a := e.start(t, test.ID.String())
	b := e.start(t, test.ID.String())

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   response.ErrCode
	}{
		{"no token", "/api/v1/attempts/" + a.Attempt.ID.String() + "/state", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", "/api/v1/attempts/" + a.Attempt.ID.String() + "/state", "not-a-jwt", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"other attempt", "/api/v1/attempts/" + b.Attempt.ID.String() + "/state", a.Token, http.StatusForbidden, response.ErrAttemptMismatch},
		{"admin token", "/api/v1/attempts/" + a.Attempt.ID.String() + "/state", e.adminToken(t), http.StatusForbidden, response.ErrForbidden},
		{"bad attempt id", "/api/v1/attempts/nope/state", a.Token, http.StatusBadRequest, response.ErrInvalidID},
		{"attempt token on admin route", "/api/v1/admin/tests/" + test.ID.String() + "/questions", a.Token, http.StatusForbidden, response.ErrAdminAccessOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := e.do(t, http.MethodGet, tt.path, tt.token, nil)
			wantError(t, status, res, tt.status, tt.code)
		})
	}
}

func TestStartUnknownTest(t *testing.T) {
	e := newEnv(t)
	status, res := e.do(t, http.MethodPost, "/api/v1/tests/00000000-0000-0000-0000-000000000001/attempts", "", nil)
	wantError(t, status, res, http.StatusNotFound, response.ErrNotFound)
}
