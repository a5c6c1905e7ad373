package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/expense-tracker/graphql-api/internal/api/session"
	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
	"github.com/expense-tracker/graphql-api/internal/core/service"
	"github.com/expense-tracker/graphql-api/internal/metrics"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	sessions map[string]*domain.Session
	txs      map[string]*domain.Transaction
	listErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		sessions: map[string]*domain.Session{},
		txs:      map[string]*domain.Transaction{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return prefix + strconv.Itoa(s.seq)
}

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return nil, domain.ErrUserExists
		}
	}
	c := *u
	c.ID = r.nextID("u")
	r.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

type memSessions struct{ *memStore }

func (r memSessions) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.ID] = &c
	return nil
}

func (r memSessions) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func (r memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type memTxs struct{ *memStore }

func (r memTxs) Create(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	c.ID = r.nextID("t")
	r.txs[c.ID] = &c
	out := c
	return &out, nil
}

func (r memTxs) FindByID(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	c := *t
	return &c, nil
}

func (r memTxs) ListByUser(_ context.Context, userID string) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Transaction
	for _, t := range r.txs {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memTxs) Update(_ context.Context, id, ownerID string, p ports.TransactionPatch) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok || t.UserID != ownerID {
		return nil, domain.ErrTransactionNotFound
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.PaymentType != nil {
		t.PaymentType = *p.PaymentType
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	c := *t
	return &c, nil
}

func (r memTxs) Delete(_ context.Context, id, ownerID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok || t.UserID != ownerID {
		return nil, domain.ErrTransactionNotFound
	}
	delete(r.txs, id)
	return t, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []gqlError                 `json:"errors"`
}

type client struct {
	t       *testing.T
	e       *echo.Echo
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) (*echo.Echo, *memStore) {
	t.Helper()
	store := newMemStore()
	log := zerolog.Nop()

	auth := service.NewAuthService(memUsers{store}, memSessions{store}, time.Hour, log)
	txs := service.NewTransactionService(memTxs{store}, nil, log)

	schema, err := NewSchema(NewResolver(auth, txs, log))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	e := echo.New()
	mgr := session.NewManager(auth, session.Options{Secret: "test-secret"}, log)
	h := NewHandler(schema)
	g := e.Group("/graphql", mgr.Middleware())
	g.POST("", h.Serve)
	g.GET("", h.Serve)
	return e, store
}

func (c *client) do(query string, vars map[string]any) gqlResponse {
	c.t.Helper()
	body, _ := json.Marshal(map[string]any{"query": query, "variables": vars})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		c.t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name != session.CookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookies = nil
		} else {
			c.cookies = []*http.Cookie{{Name: ck.Name, Value: ck.Value}}
		}
	}

	var resp gqlResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		c.t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func field[T any](t *testing.T, resp gqlResponse, name string) T {
	t.Helper()
	var out T
	raw, ok := resp.Data[name]
	if !ok {
		t.Fatalf("field %q missing from data: %+v (errors %+v)", name, resp.Data, resp.Errors)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %q: %v", name, err)
	}
	return out
}

func onlyError(t *testing.T, resp gqlResponse, want string) {
	t.Helper()
	if len(resp.Errors) != 1 || resp.Errors[0].Message != want {
		t.Fatalf("expected single error %q, got %+v", want, resp.Errors)
	}
}

const signUpMutation = `mutation($input: SignUpInput!) {
	signUp(input: $input) { _id username name gender profilePicture }
}`

const loginMutation = `mutation($input: LoginInput!) {
	login(input: $input) { _id username }
}`

const createMutation = `mutation($input: CreateTransactionInput!) {
	createTransaction(input: $input) { _id userId description paymentType category amount location date }
}`

type userJSON struct {
	ID             string  `json:"_id"`
	Username       string  `json:"username"`
	Name           string  `json:"name"`
	Gender         string  `json:"gender"`
	ProfilePicture *string `json:"profilePicture"`
}

type txJSON struct {
	ID          string  `json:"_id"`
	UserID      string  `json:"userId"`
	Description string  `json:"description"`
	PaymentType string  `json:"paymentType"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Location    *string `json:"location"`
	Date        string  `json:"date"`
}

func signUp(t *testing.T, e *echo.Echo, username string) (*client, userJSON) {
	t.Helper()
	c := &client{t: t, e: e}
	resp := c.do(signUpMutation, map[string]any{"input": map[string]any{
		"username": username, "name": "Test User", "password": "pass123", "gender": "male",
	}})
	if len(resp.Errors) > 0 {
		t.Fatalf("signUp failed: %+v", resp.Errors)
	}
	if len(c.cookies) == 0 {
		t.Fatal("signUp must set the session cookie")
	}
	return c, field[userJSON](t, resp, "signUp")
}

func groceriesInput() map[string]any {
	return map[string]any{"input": map[string]any{
		"description": "Groceries", "paymentType": "cash", "category": "expense",
		"amount": 42.50, "date": "2024-03-01",
	}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSignUp_OpensSession(t *testing.T) {
	e, _ := newTestServer(t)
	c, u := signUp(t, e, "alice")

	if u.ID == "" || u.Username != "alice" || u.Gender != "male" {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.ProfilePicture == nil || *u.ProfilePicture != "https://avatar.iran.liara.run/public/boy?username=alice" {
		t.Errorf("unexpected picture: %v", u.ProfilePicture)
	}

	me := field[*userJSON](t, c.do(`{ authUser { _id username } }`, nil), "authUser")
	if me == nil || me.ID != u.ID {
		t.Errorf("authUser must be the new user, got %+v", me)
	}
}

func TestSignUp_Duplicate(t *testing.T) {
	e, store := newTestServer(t)
	signUp(t, e, "bob")

	c := &client{t: t, e: e}
	resp := c.do(signUpMutation, map[string]any{"input": map[string]any{
		"username": "bob", "name": "Bob", "password": "x", "gender": "male",
	}})
	onlyError(t, resp, "User already exists")
	if len(store.users) != 1 {
		t.Errorf("expected one user, got %d", len(store.users))
	}
	if len(c.cookies) != 0 {
		t.Error("failed signUp must not set a cookie")
	}
}

func TestSignUp_Validation(t *testing.T) {
	e, _ := newTestServer(t)
	c := &client{t: t, e: e}

	resp := c.do(signUpMutation, map[string]any{"input": map[string]any{
		"username": "", "name": "X", "password": "p", "gender": "male",
	}})
	onlyError(t, resp, "All fields are required")

	resp = c.do(signUpMutation, map[string]any{"input": map[string]any{
		"username": "x", "name": "X", "password": "p", "gender": "robot",
	}})
	onlyError(t, resp, "gender must be one of: male female")
}

func TestPasswordIsNotQueryable(t *testing.T) {
	e, _ := newTestServer(t)
	c, _ := signUp(t, e, "carol")

	resp := c.do(`{ authUser { password } }`, nil)
	if len(resp.Errors) == 0 {
		t.Fatal("querying password must be rejected by the schema")
	}
}

func TestLogin_SameErrorForBadPasswordAndUnknownUser(t *testing.T) {
	e, _ := newTestServer(t)
	signUp(t, e, "dave")
	c := &client{t: t, e: e}

	wrong := c.do(loginMutation, map[string]any{"input": map[string]any{"username": "dave", "password": "nope"}})
	unknown := c.do(loginMutation, map[string]any{"input": map[string]any{"username": "ghost", "password": "pass123"}})

	onlyError(t, wrong, "Invalid username or password")
	onlyError(t, unknown, "Invalid username or password")

	ok := c.do(loginMutation, map[string]any{"input": map[string]any{"username": "dave", "password": "pass123"}})
	if len(ok.Errors) > 0 || len(c.cookies) == 0 {
		t.Fatalf("login failed: %+v", ok.Errors)
	}
}

func TestLogout(t *testing.T) {
	e, store := newTestServer(t)
	c, _ := signUp(t, e, "erin")

	resp := c.do(`mutation { logout { message } }`, nil)
	got := field[struct{ Message string }](t, resp, "logout")
	if got.Message != "Logged out successfully" {
		t.Errorf("unexpected message: %q", got.Message)
	}
	if len(store.sessions) != 0 {
		t.Error("server-side session must be removed")
	}
	if me := field[*userJSON](t, c.do(`{ authUser { _id } }`, nil), "authUser"); me != nil {
		t.Errorf("expected anonymous after logout, got %+v", me)
	}

	// Logging out again is harmless.
	if resp := c.do(`mutation { logout { message } }`, nil); len(resp.Errors) > 0 {
		t.Errorf("second logout failed: %+v", resp.Errors)
	}
}

func TestIdentityScopedOperationsRequireSession(t *testing.T) {
	e, _ := newTestServer(t)
	c := &client{t: t, e: e}

	onlyError(t, c.do(`{ transactions { _id } }`, nil), "Unauthorized")
	onlyError(t, c.do(`{ categoryStatistics { category } }`, nil), "Unauthorized")
	onlyError(t, c.do(createMutation, groceriesInput()), "Unauthorized")
	onlyError(t, c.do(`mutation { deleteTransaction(transactionId: "t1") { _id } }`, nil), "Unauthorized")
}

func TestCreateTransaction_Scenario(t *testing.T) {
	e, _ := newTestServer(t)
	c, u := signUp(t, e, "frank")

	tx := field[txJSON](t, c.do(createMutation, groceriesInput()), "createTransaction")
	if tx.UserID != u.ID {
		t.Errorf("owner must be the caller, got %q", tx.UserID)
	}
	if tx.Location == nil || *tx.Location != "Unknown" {
		t.Errorf("expected default location, got %v", tx.Location)
	}
	if tx.Date != "2024-03-01" || tx.Amount != 42.5 {
		t.Errorf("unexpected transaction: %+v", tx)
	}

	stats := field[[]struct {
		Category    string  `json:"category"`
		TotalAmount float64 `json:"totalAmount"`
	}](t, c.do(`{ categoryStatistics { category totalAmount } }`, nil), "categoryStatistics")
	if len(stats) != 1 || stats[0].Category != "expense" || stats[0].TotalAmount != 42.5 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// Public read by id, even anonymously.
	anon := &client{t: t, e: e}
	got := field[*txJSON](t, anon.do(`query($id: ID!) { transaction(transactionId: $id) { _id description user { username } } }`,
		map[string]any{"id": tx.ID}), "transaction")
	if got == nil || got.ID != tx.ID || got.Description != "Groceries" {
		t.Errorf("round trip failed: %+v", got)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	e, _ := newTestServer(t)
	c, _ := signUp(t, e, "gina")

	in := groceriesInput()
	in["input"].(map[string]any)["paymentType"] = "cheque"
	onlyError(t, c.do(createMutation, in), "paymentType must be one of: cash card")

	in = groceriesInput()
	in["input"].(map[string]any)["date"] = "yesterday"
	onlyError(t, c.do(createMutation, in), "date must be YYYY-MM-DD")
}

func TestTransaction_UnknownIsNull(t *testing.T) {
	e, _ := newTestServer(t)
	c := &client{t: t, e: e}

	resp := c.do(`{ transaction(transactionId: "missing") { _id } }`, nil)
	if len(resp.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
	if got := field[*txJSON](t, resp, "transaction"); got != nil {
		t.Errorf("expected null, got %+v", got)
	}
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	e, store := newTestServer(t)
	owner, _ := signUp(t, e, "hank")
	other, _ := signUp(t, e, "ivy")

	tx := field[txJSON](t, owner.do(createMutation, groceriesInput()), "createTransaction")

	update := `mutation($input: UpdateTransactionInput!) { updateTransaction(input: $input) { _id amount category description } }`
	vars := map[string]any{"input": map[string]any{"transactionId": tx.ID, "amount": 50.0, "category": "saving"}}

	onlyError(t, other.do(update, vars), "Transaction not found")
	if store.txs[tx.ID].Amount != 42.5 {
		t.Fatal("foreign update must not modify the record")
	}

	updated := field[txJSON](t, owner.do(update, vars), "updateTransaction")
	if updated.Amount != 50 || updated.Category != "saving" || updated.Description != "Groceries" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	del := `mutation($id: ID!) { deleteTransaction(transactionId: $id) { _id description } }`
	onlyError(t, other.do(del, map[string]any{"id": tx.ID}), "Transaction not found")

	deleted := field[txJSON](t, owner.do(del, map[string]any{"id": tx.ID}), "deleteTransaction")
	if deleted.ID != tx.ID {
		t.Errorf("expected deleted record, got %+v", deleted)
	}
	onlyError(t, owner.do(del, map[string]any{"id": tx.ID}), "Transaction not found")
}

func TestUserTransactions_OnlyForViewer(t *testing.T) {
	e, _ := newTestServer(t)
	jack, jackUser := signUp(t, e, "jack")
	kate, _ := signUp(t, e, "kate")
	jack.do(createMutation, groceriesInput())

	q := `query($id: ID!) { user(userId: $id) { username transactions { _id } } }`

	type withTxs struct {
		Username     string    `json:"username"`
		Transactions *[]txJSON `json:"transactions"`
	}
	own := field[withTxs](t, jack.do(q, map[string]any{"id": jackUser.ID}), "user")
	if own.Transactions == nil || len(*own.Transactions) != 1 {
		t.Errorf("owner must see their transactions, got %+v", own.Transactions)
	}
	foreign := field[withTxs](t, kate.do(q, map[string]any{"id": jackUser.ID}), "user")
	if foreign.Username != "jack" || foreign.Transactions != nil {
		t.Errorf("others must not see transactions, got %+v", foreign)
	}

	if u := field[*withTxs](t, kate.do(q, map[string]any{"id": "nobody"}), "user"); u != nil {
		t.Errorf("unknown user must be null, got %+v", u)
	}
}

func TestUnexpectedErrorIsGeneric(t *testing.T) {
	e, store := newTestServer(t)
	c, _ := signUp(t, e, "liam")
	store.listErr = errors.New("connection reset by peer")

	onlyError(t, c.do(`{ transactions { _id } }`, nil), "Error getting transactions")
}

func getStatus(e *echo.Echo, params url.Values) int {
	req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestHandler_GetRejectsMutations(t *testing.T) {
	e, _ := newTestServer(t)

	cases := []struct {
		name   string
		params url.Values
		want   int
	}{
		{"mutation", url.Values{"query": {`mutation { logout { message } }`}}, http.StatusBadRequest},
		{"shorthand query", url.Values{"query": {`{ authUser { _id } }`}}, http.StatusOK},
		{
			"keyword inside a string argument",
			url.Values{"query": {`{ transaction(transactionId: "mutation") { _id } }`}},
			http.StatusOK,
		},
		{
			"alias named mutation",
			url.Values{"query": {`query { mutation: authUser { _id } }`}},
			http.StatusOK,
		},
		{
			"named mutation selected from a mixed document",
			url.Values{
				"query":         {`query Me { authUser { _id } } mutation Out { logout { message } }`},
				"operationName": {"Out"},
			},
			http.StatusBadRequest,
		},
		{
			"named query selected from a mixed document",
			url.Values{
				"query":         {`query Me { authUser { _id } } mutation Out { logout { message } }`},
				"operationName": {"Me"},
			},
			http.StatusOK,
		},
		{"ambiguous document", url.Values{"query": {`query A { authUser { _id } } query B { authUser { _id } }`}}, http.StatusBadRequest},
		{"unparseable", url.Values{"query": {`{ authUser {`}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := getStatus(e, tc.params); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestHandler_DurationMetricLabelsAreBounded(t *testing.T) {
	e, _ := newTestServer(t)
	c := &client{t: t, e: e}

	for i := 0; i < 50; i++ {
		body, _ := json.Marshal(map[string]any{
			"query":         `query Op` + strconv.Itoa(i) + ` { authUser { _id } }`,
			"operationName": "Op" + strconv.Itoa(i),
		})
		req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	c.do(`mutation { logout { message } }`, nil)

	// One series per operation type at most, however many names clients send.
	if n := testutil.CollectAndCount(metrics.GraphQLRequestDuration); n > 4 {
		t.Errorf("expected at most 4 duration series, got %d", n)
	}
}

func TestOperationType(t *testing.T) {
	cases := []struct {
		query, name string
		want        ast.Operation
		wantErr     bool
	}{
		{query: `{ authUser { _id } }`, want: ast.Query},
		{query: `mutation { logout { message } }`, want: ast.Mutation},
		{query: `query A { authUser { _id } } mutation B { logout { message } }`, name: "B", want: ast.Mutation},
		{query: `query A { authUser { _id } }`, name: "missing", wantErr: true},
		{query: `{`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := operationType(tc.query, tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("%q: unexpected error %v", tc.query, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.query, tc.want, got)
		}
	}
	if operationLabel("") != "unknown" {
		t.Error("unparsed operations must share one label")
	}
}

func TestSignUp_PasswordOverBcryptLimit(t *testing.T) {
	e, store := newTestServer(t)
	c := &client{t: t, e: e}

	resp := c.do(signUpMutation, map[string]any{"input": map[string]any{
		"username": "zoe", "name": "Zoe", "password": strings.Repeat("é", 60), "gender": "female",
	}})
	onlyError(t, resp, "password must be at most 72 bytes")
	if len(store.users) != 0 {
		t.Errorf("expected no users, got %d", len(store.users))
	}
}

func TestUsersListIsNotExposed(t *testing.T) {
	e, _ := newTestServer(t)
	c, _ := signUp(t, e, "mia")

	if resp := c.do(`{ users { _id } }`, nil); len(resp.Errors) == 0 {
		t.Fatal("listing every user must not be part of the schema")
	}
}

func TestHandler_BadRequests(t *testing.T) {
	e, _ := newTestServer(t)

	for _, body := range []string{"{not json", `{"query": ""}`} {
		req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}
