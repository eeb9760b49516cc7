package stock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/materials-ledger/internal/reservation"
	internalstock "github.com/angelmondragon/materials-ledger/internal/stock"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

type stubReserver struct {
	lines   []reservation.Line
	orderID string
	results []reservation.Availability
	err     error
}

func (s *stubReserver) CheckAvailability(ctx context.Context, lines []reservation.Line) ([]reservation.Availability, error) {
	s.lines = lines
	return s.results, s.err
}

func (s *stubReserver) Reserve(ctx context.Context, lines []reservation.Line, orderID string) error {
	s.lines = lines
	s.orderID = orderID
	return s.err
}

func (s *stubReserver) Release(ctx context.Context, lines []reservation.Line, orderID string) error {
	s.lines = lines
	s.orderID = orderID
	return s.err
}

type stubStockService struct {
	input       internalstock.CreateInput
	item        *models.StockItem
	page        pagination.Page[models.StockItem]
	err         error
	part        string
	deactivated string
}

func (s *stubStockService) Create(ctx context.Context, input internalstock.CreateInput) (*models.StockItem, error) {
	s.input = input
	return s.item, s.err
}

func (s *stubStockService) Get(ctx context.Context, partNumber string) (*models.StockItem, error) {
	s.part = partNumber
	return s.item, s.err
}

func (s *stubStockService) List(ctx context.Context, params pagination.Params) (pagination.Page[models.StockItem], error) {
	return s.page, s.err
}

func (s *stubStockService) Deactivate(ctx context.Context, partNumber string) error {
	s.deactivated = partNumber
	return s.err
}

func sampleItem() *models.StockItem {
	return &models.StockItem{
		ID:                uuid.New(),
		PartNumber:        "CAB-1",
		Name:              "Cable",
		QuantityAvailable: decimal.NewFromInt(100),
		QuantityReserved:  decimal.NewFromInt(20),
		Unit:              "m",
		Currency:          enums.CurrencyPLN,
		Source:            enums.StockSourceManual,
	}
}

func partRequest(method, part, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("partNumber", part)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAvailabilityReturnsResultsInOrder(t *testing.T) {
	mgr := &stubReserver{results: []reservation.Availability{
		{PartNumber: "A", Requested: decimal.NewFromInt(5), Available: decimal.NewFromInt(10), Status: enums.AvailabilityAvailable},
		{PartNumber: "Z", Requested: decimal.NewFromInt(1), Available: decimal.Zero, Status: enums.AvailabilityNotFound},
	}}
	handler := Availability(mgr, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"part_number":" A ","quantity":5},{"part_number":"Z","quantity":"1"}]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mgr.lines, 2)
	assert.Equal(t, "A", mgr.lines[0].PartNumber)
	assert.True(t, mgr.lines[1].Quantity.Equal(decimal.NewFromInt(1)))

	var envelope struct {
		Data []reservation.Availability `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, enums.AvailabilityNotFound, envelope.Data[1].Status)
}

func TestAvailabilityRequiresLines(t *testing.T) {
	mgr := &stubReserver{}
	handler := Availability(mgr, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, mgr.lines)
}

func TestReserveSuccess(t *testing.T) {
	mgr := &stubReserver{}
	handler := Reserve(mgr, nil)

	body := `{"order_id":"ORD-9","lines":[{"part_number":"CAB-1","quantity":"80"}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-9", mgr.orderID)
	assert.Contains(t, rec.Body.String(), `"status":"reserved"`)
}

func TestReserveInsufficientStock(t *testing.T) {
	mgr := &stubReserver{err: pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock for B").
		WithDetails(map[string]any{"part_number": "B", "requested": "5", "available": "3"})}
	handler := Reserve(mgr, nil)

	body := `{"lines":[{"part_number":"A","quantity":5},{"part_number":"B","quantity":5}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "INSUFFICIENT_STOCK", envelope.Error.Code)
	assert.Equal(t, "B", envelope.Error.Details["part_number"])
}

func TestReleaseUnknownPart(t *testing.T) {
	mgr := &stubReserver{err: pkgerrors.New(pkgerrors.CodeNotFound, "part ZZZ not found")}
	handler := Release(mgr, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"part_number":"ZZZ","quantity":1}]}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMapsRequest(t *testing.T) {
	svc := &stubStockService{item: sampleItem()}
	handler := Create(svc, nil)

	body := `{"part_number":" CAB-1 ","name":"Cable","quantity_available":"100","unit":"m","unit_price":"4.20","currency":"eur"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "CAB-1", svc.input.PartNumber)
	assert.Equal(t, enums.CurrencyEUR, svc.input.Currency)
	require.True(t, svc.input.UnitPrice.Valid)
	assert.Equal(t, "4.2", svc.input.UnitPrice.Decimal.String())

	var envelope struct {
		Data itemResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.True(t, envelope.Data.QuantityFree.Equal(decimal.NewFromInt(80)))
}

func TestCreateRejectsUnknownCurrency(t *testing.T) {
	svc := &stubStockService{item: sampleItem()}
	handler := Create(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"part_number":"A","name":"B","currency":"GBP"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.input.PartNumber)
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	svc := &stubStockService{err: pkgerrors.New(pkgerrors.CodeConflict, "part number already exists")}
	handler := Create(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"part_number":"A","name":"B"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDetailUnescapesPartNumber(t *testing.T) {
	svc := &stubStockService{item: sampleItem()}
	handler := Detail(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, partRequest(http.MethodGet, "CAB%2F1", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CAB/1", svc.part)
}

func TestDeactivateReservedIsStateConflict(t *testing.T) {
	svc := &stubStockService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "part has reserved quantity")}
	handler := Deactivate(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, partRequest(http.MethodDelete, "CAB-1", ""))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "CAB-1", svc.deactivated)
}

func TestList(t *testing.T) {
	svc := &stubStockService{page: pagination.Page[models.StockItem]{Items: []models.StockItem{*sampleItem()}}}
	handler := List(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data pagination.Page[itemResponse] `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Items, 1)
	assert.Equal(t, "CAB-1", envelope.Data.Items[0].PartNumber)
}
