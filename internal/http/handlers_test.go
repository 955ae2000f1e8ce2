package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flechilla/statements/internal/core"
)

type fakeStore struct {
	statements   []core.Statement
	transactions map[int64][]core.Transaction
	banks        []string
	cards        map[string][]string
	created      []core.StatementPayload
	err          error
}

func (f *fakeStore) ListStatements(ctx context.Context) ([]core.Statement, error) {
	return f.statements, f.err
}

func (f *fakeStore) GetStatement(ctx context.Context, id int64) (*core.Statement, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.statements {
		if f.statements[i].ID == id {
			return &f.statements[i], nil
		}
	}
	return nil, fmt.Errorf("statement %d: %w", id, core.ErrNotFound)
}

func (f *fakeStore) ListTransactions(ctx context.Context, statementID int64) ([]core.Transaction, error) {
	return f.transactions[statementID], f.err
}

func (f *fakeStore) SumAmount(ctx context.Context, statementID int64) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	total := decimal.Zero
	for _, t := range f.transactions[statementID] {
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (f *fakeStore) ListBanks(ctx context.Context) ([]string, error) {
	return f.banks, f.err
}

func (f *fakeStore) ListCards(ctx context.Context, bankName string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cards[bankName], nil
}

func (f *fakeStore) SearchTransactions(ctx context.Context, text string) ([]core.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matches []core.Transaction
	for _, txns := range f.transactions {
		for _, t := range txns {
			if strings.Contains(strings.ToLower(t.Description), strings.ToLower(text)) {
				matches = append(matches, t)
			}
		}
	}
	return matches, nil
}

func (f *fakeStore) CreateStatement(ctx context.Context, p core.StatementPayload) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, p)
	return int64(len(f.created)), nil
}

type fakeExtractor struct {
	payload core.StatementPayload
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, file []byte, mimeType string) (core.StatementPayload, error) {
	return f.payload, f.err
}

func newTestStore() *fakeStore {
	return &fakeStore{
		statements: []core.Statement{
			{ID: 1, StatementPeriod: "January 2025", BankName: "Chase", CardName: "chase-freedom"},
			{ID: 2, StatementPeriod: "February 2025", BankName: "American Express", CardName: "amex-gold"},
		},
		transactions: map[int64][]core.Transaction{
			1: {
				{ID: 10, StatementID: 1, Date: "01/05", Description: "AWS", Amount: decimal.RequireFromString("120.50")},
				{ID: 11, StatementID: 1, Date: "01/12", Description: "Office supplies", Amount: decimal.RequireFromString("43.99")},
			},
		},
		banks: []string{"American Express", "Chase"},
		cards: map[string][]string{
			"Chase": {"chase-freedom", "chase-sapphire"},
		},
	}
}

func doRequest(t *testing.T, store Store, extractor Extractor, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer(":0", store, extractor, nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestListBanks(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/banks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Banks []string `json:"banks"`
	}
	decodeBody(t, rec, &body)
	if len(body.Banks) != 2 || body.Banks[0] != "American Express" {
		t.Fatalf("banks = %v", body.Banks)
	}
}

func TestListBanksStoreError(t *testing.T) {
	store := newTestStore()
	store.err = errors.New("database is locked")

	rec := doRequest(t, store, nil, httptest.NewRequest(http.MethodGet, "/banks", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body errorResponse
	decodeBody(t, rec, &body)
	if strings.Contains(body.Error, "locked") {
		t.Fatalf("store error leaked to client: %q", body.Error)
	}
}

func TestListCards(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/banks/Chase/cards", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Cards []string `json:"cards"`
	}
	decodeBody(t, rec, &body)
	if len(body.Cards) != 2 {
		t.Fatalf("cards = %v", body.Cards)
	}
}

func TestListCardsUnknownBankIsEmpty(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/banks/Nowhere/cards", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"cards":[]`) {
		t.Fatalf("body = %s, want empty cards array", rec.Body.String())
	}
}

func TestListStatements(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Statements []core.Statement `json:"statements"`
	}
	decodeBody(t, rec, &body)
	if len(body.Statements) != 2 {
		t.Fatalf("statements = %v", body.Statements)
	}
}

func TestCreateStatement(t *testing.T) {
	payload := core.StatementPayload{
		StatementPeriod: "March 2025",
		BankName:        "Chase",
		CardName:        "chase-freedom",
		Transactions: []core.TransactionInput{
			{Date: "03/01", Description: "Hosting", Amount: decimal.RequireFromString("12.00")},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	store := newTestStore()
	req := httptest.NewRequest(http.MethodPost, "/statements", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, store, nil, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("created = %d payloads, want 1", len(store.created))
	}

	var body struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &body)
	if body.ID != 1 {
		t.Fatalf("id = %d, want 1", body.ID)
	}
}

func TestCreateStatementMissingBank(t *testing.T) {
	store := newTestStore()
	req := httptest.NewRequest(http.MethodPost, "/statements",
		strings.NewReader(`{"statementPeriod":"March 2025","cardName":"chase-freedom","transactions":[]}`))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, store, nil, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(store.created) != 0 {
		t.Fatal("invalid payload must not be persisted")
	}
}

func TestCreateStatementInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/statements", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(t, newTestStore(), nil, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetStatement(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Statement   core.Statement  `json:"statement"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}
	decodeBody(t, rec, &body)
	if body.Statement.ID != 1 {
		t.Fatalf("statement id = %d, want 1", body.Statement.ID)
	}
	if want := decimal.RequireFromString("164.49"); !body.TotalAmount.Equal(want) {
		t.Fatalf("totalAmount = %s, want %s", body.TotalAmount, want)
	}
}

func TestGetStatementInvalidID(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetStatementNotFound(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListStatementTransactions(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements/1/transactions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &body)
	if len(body.Transactions) != 2 {
		t.Fatalf("transactions = %v", body.Transactions)
	}
}

func TestListStatementTransactionsEmpty(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/statements/2/transactions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"transactions":[]`) {
		t.Fatalf("body = %s, want empty transactions array", rec.Body.String())
	}
}

func TestSearchTransactions(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/transactions/search?q=aws", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &body)
	if len(body.Transactions) != 1 || body.Transactions[0].Description != "AWS" {
		t.Fatalf("transactions = %v", body.Transactions)
	}
}

func TestSearchTransactionsMissingQuery(t *testing.T) {
	rec := doRequest(t, newTestStore(), nil, httptest.NewRequest(http.MethodGet, "/transactions/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestProcessStatement(t *testing.T) {
	extractor := &fakeExtractor{
		payload: core.StatementPayload{
			StatementPeriod: "January 2025",
			BankName:        "Chase",
			CardName:        "chase-freedom",
			Transactions: []core.TransactionInput{
				{Date: "01/05/2025", Description: "AWS", Amount: decimal.RequireFromString("120.50"), Category: core.DefaultCategory},
			},
		},
	}

	body, contentType := multipartUpload(t, "file", "statement.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/statement-processor", body)
	req.Header.Set("Content-Type", contentType)

	store := newTestStore()
	rec := doRequest(t, store, extractor, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var payload core.StatementPayload
	decodeBody(t, rec, &payload)
	if payload.BankName != "Chase" || len(payload.Transactions) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	if len(store.created) != 0 {
		t.Fatal("processing must not persist the statement")
	}
}

func TestProcessStatementNoFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/statement-processor", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := doRequest(t, newTestStore(), &fakeExtractor{}, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProcessStatementExtractorError(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("model returned no candidates")}

	body, contentType := multipartUpload(t, "file", "statement.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/statement-processor", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, newTestStore(), extractor, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp errorResponse
	decodeBody(t, rec, &resp)
	if !strings.Contains(resp.Error, "no candidates") {
		t.Fatalf("error = %q, want extractor message", resp.Error)
	}
}

func TestProcessStatementNotConfigured(t *testing.T) {
	body, contentType := multipartUpload(t, "file", "statement.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/statement-processor", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, newTestStore(), nil, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
