package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"apotekku/backend/internal/dashboard"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/events"
	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWith(t, Options{})
}

func newTestAPIWith(t *testing.T, opts Options) *API {
	t.Helper()

	repo := memory.NewSeeded()
	dash := dashboard.NewEngine(repo, nil, time.Second, dashboard.Options{})
	svc := service.New(repo, dash, events.NoopPublisher{}, service.Options{PriceValidation: service.PriceValidationVerify})
	auth := NewAuthManager("test-secret-key-with-enough-length", time.Hour, "123456", repo)

	opts.AllowedOrigin = "http://localhost:5173"
	api, err := New(svc, auth, opts)
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	return api
}

func login(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return login(t, api, "admin", "admin123")
}

func loginAsCashier(t *testing.T, api *API) string {
	return login(t, api, "cashier", "cashier123")
}

func doJSON(t *testing.T, api *API, method string, path string, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

const twoStripsOfParacetamol = `{
	"items": [{"medicine_id": "med-paracetamol", "batch_id": "bat-paracetamol-a", "quantity": 2, "unit_type": "strip", "unit_price": 5000, "total_price": 10000}],
	"subtotal": 10000, "discount_amount": 0, "tax_amount": 0, "total_amount": 10000,
	"paid_amount": 20000, "payment_method": "cash"
}`

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodGet, "/healthz", "", "")

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Fatalf("expected RFC3339 timestamp, got %v", body["timestamp"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/api/v1/dashboard", "", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/dashboard", "not-a-jwt", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.Code)
	}
}

func TestCreateSaleAndReadItBack(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, twoStripsOfParacetamol)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var created domain.SaleResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if !created.Success || !strings.HasPrefix(created.InvoiceNumber, "INV-") {
		t.Fatalf("unexpected sale response %+v", created)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+created.SaleID, token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for sale detail, got %d", res.Code)
	}
	var detail struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
		t.Fatalf("decode sale detail: %v", err)
	}
	if detail.Sale.InvoiceNumber != created.InvoiceNumber || len(detail.Sale.Items) != 1 || detail.Sale.Items[0].Pieces != 20 {
		t.Fatalf("unexpected sale detail %+v", detail.Sale)
	}
	if detail.Sale.OperatorUsername != "cashier" {
		t.Fatalf("expected operator cashier, got %s", detail.Sale.OperatorUsername)
	}

	today := time.Now().UTC().Format("2006-01-02")
	res = doJSON(t, api, http.MethodGet, "/api/v1/sales?from_date="+today+"&to_date="+today, token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for sale list, got %d", res.Code)
	}
	var list struct {
		Sales []domain.Sale `json:"sales"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode sale list: %v", err)
	}
	if len(list.Sales) != 1 {
		t.Fatalf("expected one sale today, got %d", len(list.Sales))
	}
}

func TestCreateSaleErrorEnvelope(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{
			name:   "tampered price",
			body:   strings.ReplaceAll(strings.ReplaceAll(twoStripsOfParacetamol, `"unit_price": 5000`, `"unit_price": 100`), "10000", "200"),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			body:   `{"items": [], "coupon": "FREE"}`,
			status: http.StatusBadRequest,
		},
		{
			name: "insufficient stock",
			body: `{
				"items": [{"medicine_id": "med-omeprazole", "batch_id": "bat-omeprazole-a", "quantity": 2, "unit_type": "box", "unit_price": 45000, "total_price": 90000}],
				"subtotal": 90000, "discount_amount": 0, "tax_amount": 0, "total_amount": 90000,
				"paid_amount": 90000, "payment_method": "cash"
			}`,
			status: http.StatusConflict,
		},
		{
			name: "overflowing box quantity",
			body: `{
				"items": [{"medicine_id": "med-paracetamol", "batch_id": "bat-paracetamol-a", "quantity": 92233720368547759, "unit_type": "box", "unit_price": 50000, "total_price": 4611686018427387950000}],
				"subtotal": 4611686018427387950000, "discount_amount": 0, "tax_amount": 0, "total_amount": 4611686018427387950000,
				"paid_amount": 4611686018427387950000, "payment_method": "cash"
			}`,
			status: http.StatusBadRequest,
		},
		{
			name: "unknown batch",
			body: `{
				"items": [{"medicine_id": "med-paracetamol", "batch_id": "bat-missing", "quantity": 1, "unit_type": "piece", "unit_price": 500, "total_price": 500}],
				"subtotal": 500, "discount_amount": 0, "tax_amount": 0, "total_amount": 500,
				"paid_amount": 500, "payment_method": "cash"
			}`,
			status: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, tc.body)
		if res.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.status, res.Code, res.Body.String())
		}
		body := decodeBody(t, res)
		if body["success"] != false {
			t.Fatalf("%s: expected success false, got %v", tc.name, body["success"])
		}
		if msg, _ := body["message"].(string); msg == "" {
			t.Fatalf("%s: expected message in envelope", tc.name)
		}
	}
}

func TestInsufficientStockMessageNamesMedicine(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, `{
		"items": [{"medicine_id": "med-omeprazole", "batch_id": "bat-omeprazole-a", "quantity": 31, "unit_type": "piece", "unit_price": 1500, "total_price": 46500}],
		"subtotal": 46500, "discount_amount": 0, "tax_amount": 0, "total_amount": 46500,
		"paid_amount": 50000, "payment_method": "cash"
	}`)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	msg, _ := decodeBody(t, res)["message"].(string)
	if !strings.Contains(msg, "Omeprazole 20mg") || !strings.Contains(msg, "available 30") || !strings.Contains(msg, "required 31") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCreditLimitNeedsManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	overLimit := `{
		"customer_id": "cus-budi",
		"items": [{"medicine_id": "med-amoxicillin", "batch_id": "bat-amoxicillin-a", "quantity": 5, "unit_type": "box", "unit_price": 120000, "total_price": 600000}],
		"subtotal": 600000, "discount_amount": 0, "tax_amount": 0, "total_amount": 600000,
		"paid_amount": 0, "payment_method": "credit"%s
	}`

	res := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, strings.Replace(overLimit, "%s", "", 1))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without override, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, strings.Replace(overLimit, "%s", `, "manager_pin": "999999"`, 1))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong pin, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, strings.Replace(overLimit, "%s", `, "manager_pin": "123456"`, 1))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with manager override, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/customers/cus-budi", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for customer, got %d", res.Code)
	}
	var payload struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode customer: %v", err)
	}
	if payload.Customer.CurrentBalance.String() != "600000" {
		t.Fatalf("expected balance 600000, got %s", payload.Customer.CurrentBalance)
	}
}

func TestAdminOnlyCatalogWrites(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)
	admin := loginAsAdmin(t, api)

	body := `{"name": "Ibuprofen 400mg", "generic_name": "Ibuprofen", "form": "tablet", "manufacturer_id": "mfr-kalbe",
		"general_price": 700, "doctor_price": 600, "prescription_price": 650, "units_per_strip": 10, "strips_per_box": 10}`

	res := doJSON(t, api, http.MethodPost, "/api/v1/medicines", cashier, body)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/medicines", admin, body)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", res.Code, res.Body.String())
	}
	var created struct {
		Medicine domain.Medicine `json:"medicine"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode medicine: %v", err)
	}

	res = doJSON(t, api, http.MethodPatch, "/api/v1/medicines/"+created.Medicine.ID, admin, `{"active": false}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for deactivate, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/medicines?search=ibuprofen", cashier, "")
	var list struct {
		Medicines []domain.Medicine `json:"medicines"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode medicines: %v", err)
	}
	if len(list.Medicines) != 0 {
		t.Fatalf("expected inactive medicine hidden by default, got %d", len(list.Medicines))
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/medicines?search=ibuprofen&include_inactive=true", cashier, "")
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode medicines: %v", err)
	}
	if len(list.Medicines) != 1 {
		t.Fatalf("expected inactive medicine with include_inactive, got %d", len(list.Medicines))
	}
}

func TestMedicineDetailAndPriceQuote(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/medicines/med-paracetamol", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var detail domain.MedicineDetail
	if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.TotalStock != 1120 || len(detail.Batches) != 2 {
		t.Fatalf("unexpected detail stock=%d batches=%d", detail.TotalStock, len(detail.Batches))
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/medicines/med-paracetamol/price?customer_id=cus-dr-sari&unit_type=strip", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var quote domain.PriceQuote
	if err := json.NewDecoder(res.Body).Decode(&quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.Tier != "doctor" || quote.UnitPrice.String() != "4500" || quote.Pieces != 10 {
		t.Fatalf("unexpected quote %+v", quote)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/medicines/med-unknown", token, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestBatchStatusFilterAndDashboard(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/batches?status=expired", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var batches struct {
		Batches []domain.Batch `json:"batches"`
	}
	if err := json.NewDecoder(res.Body).Decode(&batches); err != nil {
		t.Fatalf("decode batches: %v", err)
	}
	if len(batches.Batches) != 1 || batches.Batches[0].ID != "bat-cetirizine-a" {
		t.Fatalf("unexpected expired batches %+v", batches.Batches)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/batches?status=recalled", token, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/dashboard", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var dash domain.Dashboard
	if err := json.NewDecoder(res.Body).Decode(&dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.ActiveMedicines != 5 || dash.ExpiredBatches != 1 || len(dash.MonthlyRevenue) != 6 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}

func TestPOSLookupRoute(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/pos/medicines?search=para", token, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Medicines []domain.POSMedicine `json:"medicines"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode pos lookup: %v", err)
	}
	if len(payload.Medicines) != 1 || len(payload.Medicines[0].Batches) != 2 {
		t.Fatalf("unexpected pos lookup %+v", payload.Medicines)
	}
	if payload.Medicines[0].Batches[0].ID != "bat-paracetamol-b" {
		t.Fatalf("expected earliest expiry first, got %s", payload.Medicines[0].Batches[0].ID)
	}
}

func TestCashierManagementIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginAsCashier(t, api)
	admin := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodGet, "/api/v1/users/cashiers", cashier, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/users/cashiers", admin, `{"username": "kasir02", "password": "rahasia99"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/users/cashiers", admin, `{"username": "kasir02", "password": "rahasia99"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d", res.Code)
	}

	login(t, api, "kasir02", "rahasia99")

	res = doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", admin, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for audit logs, got %d", res.Code)
	}
}
