package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	creditsapp "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/auton8n/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type creditsTestEnv struct {
	router       *gin.Engine
	accountRepo  *MockAccountRepository
	purchaseRepo *MockPurchaseRepository
	txRepo       *MockTransactionRepository
	gateway      *MockCheckoutGateway
	userID       uuid.UUID
}

func newCreditsTestEnv(t *testing.T) *creditsTestEnv {
	t.Helper()

	env := &creditsTestEnv{
		accountRepo:  new(MockAccountRepository),
		purchaseRepo: new(MockPurchaseRepository),
		txRepo:       new(MockTransactionRepository),
		gateway:      new(MockCheckoutGateway),
		userID:       uuid.New(),
	}

	ledger := creditsapp.NewLedgerService(env.accountRepo, env.txRepo, nopPublisher{}, zap.NewNop())
	checkout := creditsapp.NewCheckoutService(env.purchaseRepo, env.accountRepo, env.gateway, nopPublisher{}, zap.NewNop())

	creditsHandler := NewCreditsHandler(ledger, checkout)
	checkoutHandler := NewCheckoutHandler(checkout)

	router := gin.New()
	group := router.Group("/api/v1/credits", authAs(env.userID))
	group.GET("/balance", creditsHandler.GetBalance)
	group.GET("/packages", creditsHandler.ListPackages)
	group.GET("/transactions", creditsHandler.ListTransactions)
	group.GET("/purchases", creditsHandler.ListPurchases)
	group.POST("/checkout", checkoutHandler.CreateCheckout)
	group.POST("/checkout/verify", checkoutHandler.VerifyCheckout)
	env.router = router

	return env
}

func (env *creditsTestEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func accountWithBalance(userID uuid.UUID, balance int64) *credits.Account {
	account := credits.NewAccount(userID)
	account.Balance = balance
	return account
}

func TestCreditsHandler_GetBalance(t *testing.T) {
	env := newCreditsTestEnv(t)
	env.accountRepo.On("GetOrCreate", mock.Anything, env.userID).
		Return(accountWithBalance(env.userID, 585), false, nil)

	w := env.do(http.MethodGet, "/api/v1/credits/balance", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                  `json:"success"`
		Data    creditsapp.BalanceDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(585), resp.Data.Balance)
	assert.Equal(t, env.userID, resp.Data.UserID)
}

func TestCreditsHandler_GetBalance_Unauthenticated(t *testing.T) {
	env := newCreditsTestEnv(t)

	// Route without the auth middleware
	router := gin.New()
	ledger := creditsapp.NewLedgerService(env.accountRepo, env.txRepo, nopPublisher{}, zap.NewNop())
	checkout := creditsapp.NewCheckoutService(env.purchaseRepo, env.accountRepo, env.gateway, nopPublisher{}, zap.NewNop())
	h := NewCreditsHandler(ledger, checkout)
	router.GET("/balance", h.GetBalance)

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.accountRepo.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
}

func TestCreditsHandler_ListPackages(t *testing.T) {
	env := newCreditsTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/credits/packages", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []creditsapp.PackageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)

	byID := make(map[string]creditsapp.PackageDTO)
	for _, pkg := range resp.Data {
		byID[pkg.ID] = pkg
	}
	assert.Equal(t, int64(500), byID["starter"].Credits)
	assert.Equal(t, int64(500), byID["starter"].PriceCents)
	assert.Equal(t, int64(1000), byID["professional"].Credits)
	assert.Equal(t, int64(900), byID["professional"].PriceCents)
	assert.Equal(t, int64(2500), byID["enterprise"].Credits)
	assert.Equal(t, int64(2000), byID["enterprise"].PriceCents)
	assert.True(t, byID["professional"].Popular)
	assert.False(t, byID["starter"].Popular)
}

func TestCheckoutHandler_CreateCheckout(t *testing.T) {
	env := newCreditsTestEnv(t)
	env.gateway.On("CreateSession", mock.Anything, env.userID, mock.MatchedBy(func(pkg credits.Package) bool {
		return pkg.ID == credits.PackageStarter
	})).Return(&billing.CheckoutSessionOutput{
		SessionID: "cs_test_123",
		URL:       "https://checkout.stripe.com/pay/cs_test_123",
	}, nil)
	env.purchaseRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *credits.Purchase) bool {
		return p.UserID == env.userID && p.SessionID == "cs_test_123" && p.Credits == 500
	})).Return(nil)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout", gin.H{"package_id": "starter"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data creditsapp.CheckoutDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_123", resp.Data.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_123", resp.Data.URL)
	assert.Equal(t, int64(500), resp.Data.Credits)

	env.purchaseRepo.AssertExpectations(t)
}

func TestCheckoutHandler_CreateCheckout_UnknownPackage(t *testing.T) {
	env := newCreditsTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout", gin.H{"package_id": "mega"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeUnknownPackage, resp.Error.Code)

	env.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutHandler_CreateCheckout_MissingPackageID(t *testing.T) {
	env := newCreditsTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutHandler_VerifyCheckout_Settles(t *testing.T) {
	env := newCreditsTestEnv(t)
	pkg, _ := credits.PackageByID(credits.PackageStarter)
	purchase := credits.NewPurchase(env.userID, pkg, "cs_paid")

	env.purchaseRepo.On("FindBySessionID", mock.Anything, "cs_paid").Return(purchase, nil)
	env.gateway.On("RetrieveSession", mock.Anything, "cs_paid").Return(&billing.SessionPaymentStatus{
		SessionID:     "cs_paid",
		PaymentStatus: "paid",
		Paid:          true,
	}, nil)
	env.purchaseRepo.On("Settle", mock.Anything, "cs_paid").Return(&credits.SettlementResult{
		Purchase: purchase,
		Balance:  600,
	}, nil)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout/verify", gin.H{"session_id": "cs_paid"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data creditsapp.VerifyResultDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(600), resp.Data.Balance)
	assert.False(t, resp.Data.AlreadyCompleted)
}

func TestCheckoutHandler_VerifyCheckout_Unpaid(t *testing.T) {
	env := newCreditsTestEnv(t)
	env.gateway.On("RetrieveSession", mock.Anything, "cs_unpaid").Return(&billing.SessionPaymentStatus{
		SessionID:     "cs_unpaid",
		PaymentStatus: "unpaid",
		Paid:          false,
	}, nil)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout/verify", gin.H{"session_id": "cs_unpaid"})

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodePaymentNotCompleted, resp.Error.Code)

	env.purchaseRepo.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestCheckoutHandler_VerifyCheckout_UnknownSession(t *testing.T) {
	env := newCreditsTestEnv(t)
	env.gateway.On("RetrieveSession", mock.Anything, "cs_missing").Return(&billing.SessionPaymentStatus{
		SessionID:     "cs_missing",
		PaymentStatus: "paid",
		Paid:          true,
	}, nil)
	env.purchaseRepo.On("FindBySessionID", mock.Anything, "cs_missing").Return(nil, shared.ErrPurchaseNotFound)

	w := env.do(http.MethodPost, "/api/v1/credits/checkout/verify", gin.H{"session_id": "cs_missing"})

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodePurchaseNotFound, resp.Error.Code)
}

func TestCreditsHandler_ListTransactions(t *testing.T) {
	env := newCreditsTestEnv(t)
	entry, err := credits.NewDeductionTransaction(env.userID, credits.ActionGenerate, 15, 1235)
	require.NoError(t, err)
	env.txRepo.On("ListByUser", mock.Anything, env.userID, 20, 0).Return([]*credits.Transaction{entry}, int64(1), nil)

	w := env.do(http.MethodGet, "/api/v1/credits/transactions", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []creditsapp.TransactionDTO `json:"data"`
		Meta *dto.Meta                   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(15), resp.Data[0].Amount)
	assert.Equal(t, int64(1235), resp.Data[0].BalanceAfter)
	assert.Equal(t, string(credits.ActionGenerate), resp.Data[0].Action)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
}
