package v1handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"a11yscan/internal/api/handler/v1handler"
	"a11yscan/internal/billing"
	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/internal/sweep"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/payments"
	"a11yscan/pkg/ratelimit"
	"a11yscan/pkg/storage/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize logger to avoid nil pointer deref during tests
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

// stubPayments serves canned payments for the webhook tests.
type stubPayments struct {
	payments map[string]*payments.Payment
}

func (s *stubPayments) Payment(_ context.Context, id string) (*payments.Payment, error) {
	if p, ok := s.payments[id]; ok {
		return p, nil
	}

	return nil, nil
}

func (s *stubPayments) Subscription(context.Context, string, string) (*payments.Subscription, error) {
	return nil, nil
}

// helper to generate an RSA key pair and return the private key and PEM-encoded public key.
func genRSAKeys(tb testing.TB) (*rsa.PrivateKey, string) {
	tb.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(tb, err, "failed to generate RSA key")
	pubASN1, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(tb, err, "failed to marshal public key")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})

	return priv, string(pubPEM)
}

func signJWTRS256(tb testing.TB, priv *rsa.PrivateKey, sub string, issuedAt, exp time.Time) string {
	tb.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(exp),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(priv)
	require.NoError(tb, err, "failed to sign token")

	return signed
}

type fixture struct {
	mux      *http.ServeMux
	store    *memory.Memory
	payments *stubPayments

	org   domain.Organization
	user  domain.User
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	orgs, err := store.StoreOrganizations(ctx, domain.Organization{
		Name:     "acme",
		PlanType: domain.PlanStarter,
	})
	require.NoError(t, err)

	users, err := store.StoreUsers(ctx, domain.User{
		OrganizationID: orgs[0].ID,
		Email:          "owner@acme.test",
		Role:           domain.RoleOwner,
	})
	require.NoError(t, err)

	priv, pubPEM := genRSAKeys(t)
	now := time.Now()
	token := signJWTRS256(t, priv, uuid.UUID(users[0].ID).String(), now, now.Add(time.Hour))

	sec, err := v1handler.NewSecHandler(&v1handler.SecHandlerOptions{
		PublicKey:   pubPEM,
		EngineToken: "engine-token",
		CronSecret:  "cron-secret",
	}, store)
	require.NoError(t, err)

	admission := plan.NewAdmission(store)
	scans := scan.New(store, admission, scan.Options{})
	pay := &stubPayments{payments: map[string]*payments.Payment{}}

	h := v1handler.New(v1handler.Deps{
		Storage:   store,
		Scans:     scans,
		Admission: admission,
		Billing:   billing.New(store, pay),
		Scheduler: sweep.NewScheduler(store, scans, sweep.Options{Parallelism: 1}),
		Expiry:    sweep.NewExpiry(store, nil, sweep.Options{Parallelism: 1}),
	}, sec, v1handler.RateLimits{
		Counter:            ratelimit.NewMemory(),
		ScanStartPerMinute: 100,
		WebhookPerMinute:   100,
	})

	mux := http.NewServeMux()
	h.Register(mux)

	return &fixture{
		mux:      mux,
		store:    store,
		payments: pay,
		org:      orgs[0],
		user:     users[0],
		token:    token,
	}
}

// do performs an authenticated request against the fixture mux.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))

	return out
}

func (f *fixture) addWebsite(t *testing.T) domain.Website {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/websites", v1handler.CreateWebsiteRequest{
		URL:  "https://example.com",
		Name: "Example",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	return decodeBody[domain.Website](t, rec)
}

func TestCreateWebsite(t *testing.T) {
	f := newFixture(t)

	site := f.addWebsite(t)
	require.Equal(t, "https://example.com", site.URL)
	require.Equal(t, f.org.ID, site.OrganizationID)
	require.True(t, site.Active)

	rec := f.do(t, http.MethodGet, "/v1/websites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[v1handler.WebsiteList](t, rec)
	require.Len(t, list.Items, 1)
}

func TestCreateWebsite_InvalidURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/websites", v1handler.CreateWebsiteRequest{URL: "not-a-url"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWebsite_PlanLimit(t *testing.T) {
	f := newFixture(t)

	// STARTER allows 5 websites
	for i := range 5 {
		rec := f.do(t, http.MethodPost, "/v1/websites", v1handler.CreateWebsiteRequest{
			URL: "https://example.com/" + string(rune('a'+i)),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/v1/websites", v1handler.CreateWebsiteRequest{
		URL: "https://onetoomany.example.com",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[v1handler.ErrorResponse](t, rec)
	require.Equal(t, "PLAN_LIMIT_EXCEEDED", body.Code)
	require.Equal(t, string(domain.PlanStarter), body.PlanType)
	require.Equal(t, 5, body.Limit)
}

func TestDeleteWebsite(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	rec := f.do(t, http.MethodDelete, "/v1/websites/"+uuid.UUID(site.ID).String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// a second delete no longer finds the row
	rec = f.do(t, http.MethodDelete, "/v1/websites/"+uuid.UUID(site.ID).String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartScan(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	rec := f.do(t, http.MethodPost, "/v1/websites/"+uuid.UUID(site.ID).String()+"/scans",
		v1handler.StartScanRequest{Kind: domain.ScanKindQuick})
	require.Equal(t, http.StatusCreated, rec.Code)

	scan := decodeBody[domain.Scan](t, rec)
	require.Equal(t, domain.ScanStatusQueued, scan.Status)
	require.Equal(t, domain.ScanKindQuick, scan.Kind)
	require.Equal(t, domain.TriggerAPI, scan.Trigger)
	require.Len(t, f.store.Jobs(), 1)
}

func TestStartScan_UnknownWebsite(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/websites/"+uuid.NewString()+"/scans", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartScan_InvalidKind(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	rec := f.do(t, http.MethodPost, "/v1/websites/"+uuid.UUID(site.ID).String()+"/scans",
		map[string]string{"kind": "PARTIAL"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanStatusAndList(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	rec := f.do(t, http.MethodPost, "/v1/websites/"+uuid.UUID(site.ID).String()+"/scans", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[domain.Scan](t, rec)

	rec = f.do(t, http.MethodGet, "/v1/scans/"+uuid.UUID(created.ID).String()+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[v1handler.ScanStatusResponse](t, rec)
	require.Equal(t, domain.ScanStatusQueued, status.Status)
	require.Nil(t, status.CompletedAt)

	rec = f.do(t, http.MethodGet, "/v1/scans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[v1handler.ScanList](t, rec)
	require.Len(t, list.Items, 1)

	// the full result is only served once the scan completes
	rec = f.do(t, http.MethodGet, "/v1/scans/"+uuid.UUID(created.ID).String(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestReportProgress_EngineTokenGated(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	rec := f.do(t, http.MethodPost, "/v1/websites/"+uuid.UUID(site.ID).String()+"/scans", nil)
	created := decodeBody[domain.Scan](t, rec)
	path := "/v1/scans/" + uuid.UUID(created.ID).String() + "/progress"

	report, err := json.Marshal(v1handler.ProgressRequest{Status: domain.ScanStatusCrawling})
	require.NoError(t, err)

	// user bearer tokens are not engine tokens
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(report))
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(report))
	req.Header.Set("Authorization", "Bearer engine-token")
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[v1handler.ScanStatusResponse](t, rec)
	require.Equal(t, domain.ScanStatusCrawling, status.Status)
}

func TestCreateSchedule_FrequencyVsTier(t *testing.T) {
	f := newFixture(t)
	site := f.addWebsite(t)

	// STARTER does not include daily schedules
	rec := f.do(t, http.MethodPost, "/v1/schedules", v1handler.CreateScheduleRequest{
		WebsiteID: uuid.UUID(site.ID),
		Frequency: domain.FrequencyDaily,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/schedules", v1handler.CreateScheduleRequest{
		WebsiteID: uuid.UUID(site.ID),
		Frequency: domain.FrequencyWeekly,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	schedule := decodeBody[domain.ScanSchedule](t, rec)
	require.True(t, schedule.Active)

	rec = f.do(t, http.MethodGet, "/v1/schedules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[v1handler.ScheduleList](t, rec)
	require.Len(t, list.Items, 1)
}

func TestAddMember_PlanLimit(t *testing.T) {
	f := newFixture(t)

	// STARTER allows 3 members; the fixture owner occupies one slot
	for _, email := range []string{"two@acme.test", "three@acme.test"} {
		rec := f.do(t, http.MethodPost, "/v1/members", v1handler.AddMemberRequest{Email: email})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/v1/members", v1handler.AddMemberRequest{Email: "four@acme.test"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[v1handler.ErrorResponse](t, rec)
	require.Equal(t, "PLAN_LIMIT_EXCEEDED", body.Code)
	require.Equal(t, 3, body.Limit)
}

func TestPaymentWebhook_AlwaysAcks(t *testing.T) {
	f := newFixture(t)

	// unknown payment: processing fails internally, delivery is still acked
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments",
		bytes.NewReader([]byte(`{"id":"pay_unknown"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// form-encoded delivery, the processor's native shape
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments",
		bytes.NewReader([]byte("id=pay_unknown")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentWebhook_FirstPaymentActivatesPlan(t *testing.T) {
	f := newFixture(t)

	f.payments.payments["pay_1"] = &payments.Payment{
		ID:             "pay_1",
		Status:         payments.StatusPaid,
		SequenceType:   payments.SequenceFirst,
		CustomerID:     "cst_1",
		SubscriptionID: "sub_1",
		Amount:         payments.Amount{Currency: "EUR", Value: "49.00"},
		Metadata: payments.Metadata{
			OrganizationID: uuid.UUID(f.org.ID).String(),
			PlanType:       string(domain.PlanProfessional),
			Interval:       string(domain.IntervalMonthly),
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments",
		bytes.NewReader([]byte(`{"id":"pay_1"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	org, err := f.store.OrganizationByID(context.Background(), f.org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PlanProfessional, org.PlanType)
	require.Equal(t, domain.BillingActive, org.BillingStatus)
}

func TestCronEndpoints_SecretGated(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/cron/schedules", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/cron/schedules", nil)
	req.Header.Set("X-Cron-Secret", "cron-secret")
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	schedules := decodeBody[v1handler.ScheduleSweepResponse](t, rec)
	require.Zero(t, schedules.Scheduled)

	req = httptest.NewRequest(http.MethodPost, "/cron/expiry", nil)
	req.Header.Set("X-Cron-Secret", "cron-secret")
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	expiry := decodeBody[v1handler.ExpirySweepResponse](t, rec)
	require.Zero(t, expiry.Downgraded)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/websites", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[v1handler.ErrorResponse](t, rec)
	require.Equal(t, "UNAUTHORIZED", body.Code)
}
