package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

const testToken = "tok-valid"

var testUser = core.User{ID: 7, Username: "lucia", Email: "lucia@example.com"}

type fakeAccounts struct {
	mu         sync.Mutex
	authErr    error
	registerFn func(services.Registration) (core.User, error)
	loggedOut  []string
}

func (f *fakeAccounts) Register(ctx context.Context, reg services.Registration) (core.User, error) {
	if f.registerFn != nil {
		return f.registerFn(reg)
	}
	return core.User{ID: 8, Username: reg.Username}, nil
}

func (f *fakeAccounts) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	if f.authErr != nil {
		return core.User{}, f.authErr
	}
	return testUser, nil
}

func (f *fakeAccounts) StartSession(ctx context.Context, userID int64) (services.Session, error) {
	return services.Session{Token: "tok-new", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAccounts) UserForSession(ctx context.Context, token string) (core.User, error) {
	if token != testToken {
		return core.User{}, services.ErrNoSession
	}
	return testUser, nil
}

func (f *fakeAccounts) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

type fakeLedger struct {
	mu        sync.Mutex
	summary   core.Summary
	cats      []core.Category
	addErr    error
	added     []core.Transaction
	restricts []*core.Kind
	subs      []core.Subscription
	created   []core.Category
}

func (f *fakeLedger) Today() core.Date { return core.NewDate(2026, 10, 19) }

func (f *fakeLedger) Dashboard(ctx context.Context, userID int64) (core.Summary, error) {
	return f.summary, nil
}

func (f *fakeLedger) CategoryOptions(ctx context.Context, userID int64, kind *core.Kind) ([]core.Category, error) {
	if kind == nil {
		return f.cats, nil
	}
	var out []core.Category
	for _, c := range f.cats {
		if c.Kind == *kind {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeLedger) AddTransaction(ctx context.Context, userID int64, t core.Transaction, restrict *core.Kind) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return core.Transaction{}, f.addErr
	}
	f.added = append(f.added, t)
	f.restricts = append(f.restricts, restrict)
	return t, nil
}

func (f *fakeLedger) AddSubscription(ctx context.Context, userID int64, sub core.Subscription) (core.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return core.Subscription{}, f.addErr
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeLedger) AddCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return core.Category{}, f.addErr
	}
	f.created = append(f.created, c)
	return c, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T, acc *fakeAccounts, led *fakeLedger, ready Pinger) *Server {
	t.Helper()
	srv, err := NewServer(Options{Addr: ":0"}, acc, led, ready)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "finanzas_session", Value: testToken})
	return req
}

func postForm(path string, v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, fakePinger{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s content-type=%q", path, ct)
		}
	}

	down := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, fakePinger{err: errors.New("db gone")})
	rr := do(down, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Fatalf("body missing not_ready: %s", rr.Body.String())
	}
}

func TestSecurityHeadersAndStatic(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing CSP header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("probe expected 404, got %d", rr.Code)
	}
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, nil)

	paths := []string{"/", "/transaccion/nueva/", "/ingreso/nuevo/", "/suscripcion/nueva/", "/categoria/nueva/"}
	for _, p := range paths {
		rr := do(srv, httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", p, rr.Code)
		}
		want := "/login/?next=" + url.QueryEscape(p)
		if loc := rr.Header().Get("Location"); loc != want {
			t.Fatalf("%s: location=%q want %q", p, loc, want)
		}
	}

	// a stale cookie is cleared on the way out
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "finanzas_session", Value: "expired"})
	rr := do(srv, req)
	if c := cookieNamed(rr, "finanzas_session"); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be cleared, got %+v", c)
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, nil)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/login/?next=%2Fingreso%2Fnuevo%2F", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("login form status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `value="/ingreso/nuevo/"`) {
		t.Fatal("login form lost the next parameter")
	}

	rr = do(srv, postForm("/login/", url.Values{
		"username": {"lucia"}, "password": {"secreto123"}, "next": {"/ingreso/nuevo/"},
	}))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/ingreso/nuevo/" {
		t.Fatalf("location=%q", loc)
	}
	c := cookieNamed(rr, "finanzas_session")
	if c == nil || c.Value != "tok-new" || !c.HttpOnly {
		t.Fatalf("unexpected session cookie %+v", c)
	}

	// off-site next falls back to the dashboard
	rr = do(srv, postForm("/login/", url.Values{
		"username": {"lucia"}, "password": {"secreto123"}, "next": {"//evil.example"},
	}))
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("location=%q", loc)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{authErr: services.ErrInvalidCredentials}, &fakeLedger{}, nil)

	rr := do(srv, postForm("/login/", url.Values{"username": {"lucia"}, "password": {"mala"}}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), msgInvalidLogin) {
		t.Fatal("missing invalid login message")
	}
	if cookieNamed(rr, "finanzas_session") != nil {
		t.Fatal("no session cookie expected")
	}

	rr = do(srv, postForm("/login/", url.Values{"username": {""}, "password": {""}}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty form, got %d", rr.Code)
	}
}

func TestLogout(t *testing.T) {
	acc := &fakeAccounts{}
	srv := newTestServer(t, acc, &fakeLedger{}, nil)

	rr := do(srv, authed(postForm("/logout/", nil)))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login/" {
		t.Fatalf("unexpected logout response %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if len(acc.loggedOut) != 1 || acc.loggedOut[0] != testToken {
		t.Fatalf("logout not recorded: %v", acc.loggedOut)
	}
	if c := cookieNamed(rr, "finanzas_session"); c == nil || c.MaxAge >= 0 {
		t.Fatal("session cookie not cleared")
	}
}

func TestSignup(t *testing.T) {
	acc := &fakeAccounts{registerFn: func(reg services.Registration) (core.User, error) {
		if reg.Password != reg.PasswordConfirm {
			return core.User{}, core.FieldErrors{"password2": "Los dos campos de contrasena no coinciden."}
		}
		return core.User{ID: 9, Username: reg.Username}, nil
	}}
	srv := newTestServer(t, acc, &fakeLedger{}, nil)

	rr := do(srv, postForm("/registro/", url.Values{
		"username": {"nuevo"}, "email": {"n@example.com"}, "password1": {"abcdefgh"}, "password2": {"zzzzzzzz"},
	}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no coinciden") {
		t.Fatal("missing mismatch message")
	}
	if strings.Contains(rr.Body.String(), "zzzzzzzz") {
		t.Fatal("password echoed back into the form")
	}

	rr = do(srv, postForm("/registro/", url.Values{
		"username": {"nuevo"}, "email": {"n@example.com"}, "password1": {"abcdefgh"}, "password2": {"abcdefgh"},
	}))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("unexpected signup response %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if cookieNamed(rr, "finanzas_session") == nil {
		t.Fatal("signup should start a session")
	}
	if cookieNamed(rr, flashCookie) == nil {
		t.Fatal("signup should set a flash")
	}
}

func TestDashboardRenders(t *testing.T) {
	food := core.Category{ID: 1, Name: "Comida", Kind: core.Expense, Color: "#f97316"}
	led := &fakeLedger{summary: core.Summary{
		IncomeTotal:  core.MoneyFromCents(500000),
		ExpenseTotal: core.MoneyFromCents(123450),
		Balance:      core.MoneyFromCents(376550),
		MonthTotalsByCurrency: []core.CurrencyTotal{
			{Currency: core.PEN, Total: core.MoneyFromCents(123450)},
		},
		MonthlyCategoryTotals: []core.CategoryTotal{
			{Name: "Comida", Color: "#f97316", Currency: core.PEN, Total: core.MoneyFromCents(123450), Percent: 100},
		},
		ExpenseRatio: 20,
		IncomeRatio:  80,
		RecentTransactions: []core.Transaction{
			{Description: "Almuerzo", Amount: core.MoneyFromCents(2500), Currency: core.PEN, PaymentMethod: core.Yape, Date: core.NewDate(2026, 10, 18), Category: &food},
			{Description: "Taxi", Amount: core.MoneyFromCents(1200), Currency: core.PEN, PaymentMethod: core.Efectivo, Date: core.NewDate(2026, 10, 17)},
		},
	}}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	rr := do(srv, authed(httptest.NewRequest(http.MethodGet, "/", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"S/ 5,000.00", "S/ 1,234.50", "Almuerzo", "Comida", "Taxi", core.UncategorizedName, "lucia"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("cache-control=%q", cc)
	}
}

func TestFlashShownOnce(t *testing.T) {
	srv := newTestServer(t, &fakeAccounts{}, &fakeLedger{}, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/", nil))
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: url.QueryEscape("Movimiento guardado.")})
	rr := do(srv, req)
	if !strings.Contains(rr.Body.String(), "Movimiento guardado.") {
		t.Fatal("flash not rendered")
	}
	if c := cookieNamed(rr, flashCookie); c == nil || c.MaxAge >= 0 {
		t.Fatal("flash cookie not cleared")
	}
}

func validTransactionForm() url.Values {
	return url.Values{
		"description":    {"Almuerzo"},
		"amount":         {"12.50"},
		"currency":       {"PEN"},
		"payment_method": {"YAPE"},
		"date":           {"2026-10-18"},
		"category":       {"3"},
	}
}

func TestCreateTransaction(t *testing.T) {
	led := &fakeLedger{}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	rr := do(srv, authed(postForm("/transaccion/nueva/", validTransactionForm())))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if len(led.added) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(led.added))
	}
	got := led.added[0]
	if got.Amount.Cents() != 1250 || got.PaymentMethod != core.Yape || got.CategoryID == nil || *got.CategoryID != 3 {
		t.Fatalf("unexpected transaction %+v", got)
	}
	if led.restricts[0] != nil {
		t.Fatal("expense form must not restrict the category kind")
	}
	if c := cookieNamed(rr, flashCookie); c == nil {
		t.Fatal("missing flash cookie")
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	led := &fakeLedger{}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	v := validTransactionForm()
	v.Set("amount", "abc")
	v.Set("payment_method", "BITCOIN")
	rr := do(srv, authed(postForm("/transaccion/nueva/", v)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, msgInvalidAmount) {
		t.Error("missing amount error")
	}
	if !strings.Contains(body, "Almuerzo") {
		t.Error("submitted description not kept")
	}
	if len(led.added) != 0 {
		t.Fatal("ledger must not be called with invalid input")
	}

	led.addErr = core.FieldErrors{"category": "Categoria invalida para este usuario."}
	rr = do(srv, authed(postForm("/transaccion/nueva/", validTransactionForm())))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 from service errors, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Categoria invalida para este usuario.") {
		t.Error("service field error not rendered")
	}

	led.addErr = errors.New("disk full")
	rr = do(srv, authed(postForm("/transaccion/nueva/", validTransactionForm())))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestIncomeFormRestrictsCategories(t *testing.T) {
	led := &fakeLedger{cats: []core.Category{
		{ID: 1, Name: "Sueldo", Kind: core.Income, Color: "#22c55e"},
		{ID: 2, Name: "Transporte", Kind: core.Expense, Color: "#3b82f6"},
	}}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	rr := do(srv, authed(httptest.NewRequest(http.MethodGet, "/ingreso/nuevo/", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("income form status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Sueldo") || strings.Contains(body, "Transporte") {
		t.Fatal("income form should only offer income categories")
	}

	v := validTransactionForm()
	v.Set("category", "1")
	rr = do(srv, authed(postForm("/ingreso/nuevo/", v)))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if r := led.restricts[0]; r == nil || *r != core.Income {
		t.Fatalf("expected income restriction, got %v", r)
	}

	rr = do(srv, authed(httptest.NewRequest(http.MethodGet, "/transaccion/nueva/", nil)))
	if !strings.Contains(rr.Body.String(), "Transporte") {
		t.Fatal("transaction form should offer all categories")
	}
}

func TestCreateSubscription(t *testing.T) {
	led := &fakeLedger{}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	rr := do(srv, authed(httptest.NewRequest(http.MethodGet, "/suscripcion/nueva/", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("subscription form status=%d", rr.Code)
	}

	rr = do(srv, authed(postForm("/suscripcion/nueva/", url.Values{
		"name": {""}, "amount": {"39.90"}, "billing_cycle": {"MONTHLY"}, "next_billing_date": {"2026-11-01"},
	})))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	rr = do(srv, authed(postForm("/suscripcion/nueva/", url.Values{
		"name": {"Netflix"}, "amount": {"39.90"}, "billing_cycle": {"MONTHLY"}, "next_billing_date": {"2026-11-01"},
	})))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if len(led.subs) != 1 || !led.subs[0].IsActive || led.subs[0].AutoRenew {
		t.Fatalf("unexpected subscription %+v", led.subs)
	}
}

func TestCreateCategory(t *testing.T) {
	led := &fakeLedger{}
	srv := newTestServer(t, &fakeAccounts{}, led, nil)

	rr := do(srv, authed(httptest.NewRequest(http.MethodGet, "/categoria/nueva/", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("category form status=%d", rr.Code)
	}

	rr = do(srv, authed(postForm("/categoria/nueva/", url.Values{
		"name": {"Mascotas"}, "kind": {"EXPENSE"}, "color": {"#a855f7"},
	})))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if len(led.created) != 1 || led.created[0].Kind != core.Expense {
		t.Fatalf("unexpected categories %+v", led.created)
	}

	rr = do(srv, authed(postForm("/categoria/nueva/", url.Values{"name": {"X"}, "kind": {"OTRO"}})))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}
