package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"doclookup/internal/config"
	"doclookup/internal/odata"
	"doclookup/internal/odata/odatatest"

	"go.uber.org/zap"
)

// --- Fixtures ---

type countingReader struct {
	calls   int
	paths   []string
	queries []odata.Query
	records []odata.Record
	err     error
}

func (r *countingReader) Get(_ context.Context, path string, q odata.Query) ([]odata.Record, error) {
	r.calls++
	r.paths = append(r.paths, path)
	r.queries = append(r.queries, q)
	return r.records, r.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newBackend(t *testing.T) *odatatest.Server {
	t.Helper()
	srv := odatatest.NewServer()
	t.Cleanup(srv.Close)

	var orders []map[string]any
	for i := 1; i <= 15; i++ {
		orders = append(orders, map[string]any{
			"SalesOrder":              fmt.Sprintf("45000001%02d", i),
			"SoldToParty":             []string{"ACME", "ACME Corp", "Globex"}[i%3],
			"PurchaseOrderByCustomer": fmt.Sprintf("PO-%d", i),
			"CreationDate":            date(2024, 1, 10+i%3),
			"BillingCompanyCode":      "1010",
			"SalesOrganization":       "1710",
		})
	}
	srv.AddEntitySet("ZC_SOHEADER", "SalesOrder", orders...)

	srv.AddEntitySet("ZC_BILLINGDOCHEADER", "BillingDocument",
		map[string]any{"BillingDocument": "90000123", "SoldToParty": "ACME", "BillingDocumentDate": date(2024, 2, 1), "CompanyCode": "1010"},
		map[string]any{"BillingDocument": "90000124", "SoldToParty": "Initech", "BillingDocumentDate": date(2024, 2, 2), "CompanyCode": "1010"},
		map[string]any{"BillingDocument": "90000125", "SoldToParty": "ACME Europe", "BillingDocumentDate": date(2024, 2, 2), "CompanyCode": "2010"},
	)
	srv.AddNavigation("ZC_BILLINGDOCHEADER", "to_Item", "90000123",
		map[string]any{"BillingDocument": "90000123", "BillingDocumentItem": "10", "Material": "TG11"},
		map[string]any{"BillingDocument": "90000123", "BillingDocumentItem": "20", "Material": "TG12"},
		map[string]any{"BillingDocument": "90000123", "BillingDocumentItem": "30", "Material": "TG13"},
	)
	srv.AddNavigation("ZC_BILLINGDOCHEADER", "to_Item", "90000124")
	return srv
}

func newBackendService(t *testing.T, srv *odatatest.Server) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.ServiceURL = srv.URL
	client := odata.NewClient(cfg, zap.NewNop())
	return NewService(client, DefaultDefinitions(), Options{}, zap.NewNop())
}

// --- FetchByKey ---

func TestFetchByKey_EmptyKeyNoNetworkCall(t *testing.T) {
	reader := &countingReader{}
	svc := NewService(reader, nil, Options{}, nil)

	for _, dt := range DocumentTypes() {
		_, err := svc.FetchByKey(context.Background(), dt, "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", dt, err)
		}
	}
	if reader.calls != 0 {
		t.Errorf("expected no backend calls, got %d", reader.calls)
	}
}

func TestFetchByKey_SalesOrderNotFound(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), SalesOrder, "4500000001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if IsTransport(err) {
		t.Error("not found must not be reported as transport error")
	}
	if doc.Header != nil {
		t.Errorf("expected no header, got %v", doc.Header)
	}
}

func TestFetchByKey_SalesOrderFound(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), SalesOrder, "4500000107")
	if err != nil {
		t.Fatalf("FetchByKey: %v", err)
	}
	if doc.Header.String("SalesOrder") != "4500000107" {
		t.Errorf("unexpected header: %v", doc.Header)
	}
	if doc.Items != nil {
		t.Errorf("sales orders carry no items, got %v", doc.Items)
	}
	if n := srv.RequestCount(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
	if path := srv.Requests()[0].Path; path != "/ZC_SOHEADER('4500000107')" {
		t.Errorf("unexpected path %q", path)
	}
}

func TestFetchByKey_ReservedCharactersStayInKey(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	for _, key := range []string{"9999#", "99?x=1", "99%zz", "99/99", "O'Brien"} {
		before := srv.RequestCount()
		_, err := svc.FetchByKey(context.Background(), SalesOrder, key)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("key %q: expected ErrNotFound, got %v", key, err)
			continue
		}
		reqs := srv.Requests()
		if len(reqs) != before+1 {
			t.Errorf("key %q: expected one request, got %d", key, len(reqs)-before)
			continue
		}
		req := reqs[len(reqs)-1]
		want := "/ZC_SOHEADER('" + strings.ReplaceAll(key, "'", "''") + "')"
		if req.Path != want {
			t.Errorf("key %q\ngot:  %q\nwant: %q", key, req.Path, want)
		}
		if req.Query.Has("x") {
			t.Errorf("key %q leaked into the query: %v", key, req.Query)
		}
	}
}

func TestFetchByKey_ReservedCharactersWithItems(t *testing.T) {
	srv := odatatest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddEntitySet("ZC_BILLINGDOCHEADER", "BillingDocument",
		map[string]any{"BillingDocument": "BD/1#2", "SoldToParty": "ACME"},
	)
	srv.AddNavigation("ZC_BILLINGDOCHEADER", "to_Item", "BD/1#2",
		map[string]any{"BillingDocumentItem": "10"},
	)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), BillingDocument, "BD/1#2")
	if err != nil {
		t.Fatalf("FetchByKey: %v", err)
	}
	if doc.ItemsErr != nil || len(doc.Items) != 1 {
		t.Fatalf("items=%v itemsErr=%v", doc.Items, doc.ItemsErr)
	}
	if path := srv.Requests()[1].Path; path != "/ZC_BILLINGDOCHEADER('BD/1#2')/to_Item" {
		t.Errorf("unexpected items path %q", path)
	}
}

func TestFetchByKey_EmptyResultIsNotFound(t *testing.T) {
	reader := &countingReader{records: nil}
	svc := NewService(reader, nil, Options{}, nil)

	_, err := svc.FetchByKey(context.Background(), SalesOrder, "4500000001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchByKey_TransportError(t *testing.T) {
	srv := newBackend(t)
	srv.Fail("/ZC_SOHEADER", http.StatusBadGateway)
	svc := newBackendService(t, srv)

	_, err := svc.FetchByKey(context.Background(), SalesOrder, "4500000001")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("transport error must not be reported as not found")
	}
	var apiErr *odata.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected wrapped APIError 502, got %v", err)
	}
}

func TestFetchByKey_BillingDocumentWithItems(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), BillingDocument, "90000123")
	if err != nil {
		t.Fatalf("FetchByKey: %v", err)
	}
	if doc.Header.String("BillingDocument") != "90000123" {
		t.Errorf("unexpected header: %v", doc.Header)
	}
	if len(doc.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(doc.Items))
	}
	if doc.Items[0].String("BillingDocumentItem") != "10" || doc.Items[2].String("BillingDocumentItem") != "30" {
		t.Errorf("item order not preserved: %v", doc.Items)
	}
	if doc.ItemsErr != nil {
		t.Errorf("unexpected items warning: %v", doc.ItemsErr)
	}
}

func TestFetchByKey_BillingDocumentNoItems(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), BillingDocument, "90000124")
	if err != nil {
		t.Fatalf("FetchByKey: %v", err)
	}
	if doc.Items == nil || len(doc.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %#v", doc.Items)
	}
}

func TestFetchByKey_ItemFailureIsSoft(t *testing.T) {
	srv := newBackend(t)
	srv.Fail("/ZC_BILLINGDOCHEADER('90000123')/to_Item", http.StatusInternalServerError)
	svc := newBackendService(t, srv)

	doc, err := svc.FetchByKey(context.Background(), BillingDocument, "90000123")
	if err != nil {
		t.Fatalf("item failure must not fail the lookup: %v", err)
	}
	if len(doc.Header) == 0 {
		t.Error("expected header to be kept")
	}
	if len(doc.Items) != 0 {
		t.Errorf("expected empty items, got %d", len(doc.Items))
	}
	if !IsTransport(doc.ItemsErr) {
		t.Errorf("expected items warning, got %v", doc.ItemsErr)
	}
}

func TestFetchByKey_HeaderFailureSkipsItems(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	_, err := svc.FetchByKey(context.Background(), BillingDocument, "99999999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, req := range srv.Requests() {
		if strings.HasSuffix(req.Path, "/to_Item") {
			t.Errorf("items must not be fetched after a failed header read: %s", req.Path)
		}
	}
}

func TestFetchByKey_KeyWithQuote(t *testing.T) {
	reader := &countingReader{}
	svc := NewService(reader, nil, Options{}, nil)

	_, _ = svc.FetchByKey(context.Background(), SalesOrder, "45'01")
	if reader.paths[0] != "/ZC_SOHEADER('45''01')" {
		t.Errorf("unexpected path %q", reader.paths[0])
	}
}

// --- SearchSuggestions ---

func TestSearchSuggestions_EmptyTextNoNetworkCall(t *testing.T) {
	reader := &countingReader{}
	svc := NewService(reader, nil, Options{}, nil)

	got := svc.SearchSuggestions(context.Background(), SalesOrder, "")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %#v", got)
	}
	if reader.calls != 0 {
		t.Errorf("expected no backend calls, got %d", reader.calls)
	}
}

func TestSearchSuggestions_CappedAtTen(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	got := svc.SearchSuggestions(context.Background(), SalesOrder, "450")
	if len(got) != 10 {
		t.Fatalf("expected 10 suggestions, got %d", len(got))
	}
	if got[0].Key != "4500000101" || got[9].Key != "4500000110" {
		t.Errorf("backend order not preserved: %v", got)
	}

	q := srv.Requests()[0].Query
	if q.Get("$top") != "10" {
		t.Errorf("$top = %q", q.Get("$top"))
	}
	if q.Get("$filter") != "substringof('450', SalesOrder)" {
		t.Errorf("$filter = %q", q.Get("$filter"))
	}
}

func TestSearchSuggestions_CapsOversizedBackendResult(t *testing.T) {
	var records []odata.Record
	for i := range 15 {
		records = append(records, odata.Record{"SalesOrder": fmt.Sprintf("45%02d", i)})
	}
	svc := NewService(&countingReader{records: records}, nil, Options{}, nil)

	got := svc.SearchSuggestions(context.Background(), SalesOrder, "45")
	if len(got) != 10 {
		t.Fatalf("expected 10 suggestions, got %d", len(got))
	}
}

func TestSearchSuggestions_FailureIsEmpty(t *testing.T) {
	svc := NewService(&countingReader{err: errors.New("connection refused")}, nil, Options{}, nil)

	got := svc.SearchSuggestions(context.Background(), BillingDocument, "900")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %#v", got)
	}
}

// --- SearchFiltered / Refine ---

func TestSearchFiltered_EmptyCriteriaEqualsDefaultPage(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)
	ctx := context.Background()

	unfiltered, err := svc.SearchFiltered(ctx, SalesOrder, nil, 0, 0)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	blank, err := svc.SearchFiltered(ctx, SalesOrder, Criteria{"SoldToParty": "", "CreationDate": "  "}, 0, 0)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	if len(unfiltered) != 15 || len(blank) != len(unfiltered) {
		t.Fatalf("expected 15 and 15 records, got %d and %d", len(unfiltered), len(blank))
	}
	for i := range unfiltered {
		if unfiltered[i].String("SalesOrder") != blank[i].String("SalesOrder") {
			t.Fatalf("result sets differ at %d", i)
		}
	}

	for _, req := range srv.Requests() {
		if req.Query.Get("$top") != "100" {
			t.Errorf("expected default page size 100, got %q", req.Query.Get("$top"))
		}
		if req.Query.Has("$filter") {
			t.Errorf("unexpected $filter %q", req.Query.Get("$filter"))
		}
	}
}

func TestSearchFiltered_SoldToPartyContains(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	got, err := svc.SearchFiltered(context.Background(), BillingDocument, Criteria{"SoldToParty": "ACME"}, 0, 0)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	for _, rec := range got {
		if !strings.Contains(rec.String("SoldToParty"), "ACME") {
			t.Errorf("record %v does not match", rec)
		}
	}
}

func TestSearchFiltered_ConjunctionWithDate(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	criteria := Criteria{"SoldToParty": "ACME", "BillingDocumentDate": "2024-02-02"}
	got, err := svc.SearchFiltered(context.Background(), BillingDocument, criteria, 0, 0)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	if len(got) != 1 || got[0].String("BillingDocument") != "90000125" {
		t.Fatalf("unexpected result: %v", got)
	}

	filter := srv.Requests()[0].Query.Get("$filter")
	want := "substringof('ACME', SoldToParty) and BillingDocumentDate eq datetime'2024-02-02T00:00:00'"
	if filter != want {
		t.Errorf("$filter:\ngot:  %q\nwant: %q", filter, want)
	}
}

func TestSearchFiltered_LimitAndOffset(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)

	got, err := svc.SearchFiltered(context.Background(), SalesOrder, nil, 5, 10)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	if len(got) != 5 || got[0].String("SalesOrder") != "4500000111" {
		t.Fatalf("unexpected page: %v", got)
	}
}

func TestSearchFiltered_Validation(t *testing.T) {
	reader := &countingReader{}
	svc := NewService(reader, nil, Options{}, nil)

	tests := []Criteria{
		{"NetValue": "10"},
		{"CreationDate": "15.01.2024"},
	}
	for _, c := range tests {
		_, err := svc.SearchFiltered(context.Background(), SalesOrder, c, 0, 0)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("criteria %v: expected ErrValidation, got %v", c, err)
		}
	}
	if reader.calls != 0 {
		t.Errorf("validation failures must not reach the backend, got %d calls", reader.calls)
	}
}

func TestSearchFiltered_TransportError(t *testing.T) {
	svc := NewService(&countingReader{err: errors.New("timeout")}, nil, Options{}, nil)

	_, err := svc.SearchFiltered(context.Background(), SalesOrder, nil, 0, 0)
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRefine_MatchesServerSideFilter(t *testing.T) {
	srv := newBackend(t)
	svc := newBackendService(t, srv)
	ctx := context.Background()

	page, err := svc.SearchFiltered(ctx, SalesOrder, nil, 0, 0)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}

	criteria := []Criteria{
		{"SoldToParty": "ACME"},
		{"SoldToParty": "acme"},
		{"CreationDate": "2024-01-11"},
		{"SoldToParty": "Corp", "CreationDate": "2024-01-11"},
		{"PurchaseOrderByCustomer": "PO-1"},
	}
	for _, c := range criteria {
		local, err := svc.Refine(SalesOrder, page, c)
		if err != nil {
			t.Fatalf("Refine(%v): %v", c, err)
		}
		remote, err := svc.SearchFiltered(ctx, SalesOrder, c, 0, 0)
		if err != nil {
			t.Fatalf("SearchFiltered(%v): %v", c, err)
		}
		if len(local) != len(remote) {
			t.Errorf("%v: refine returned %d, backend %d", c, len(local), len(remote))
			continue
		}
		for i := range local {
			if local[i].String("SalesOrder") != remote[i].String("SalesOrder") {
				t.Errorf("%v: mismatch at %d", c, i)
			}
		}
	}
}

func TestRefine_UnknownField(t *testing.T) {
	svc := NewService(&countingReader{}, nil, Options{}, nil)

	_, err := svc.Refine(BillingDocument, nil, Criteria{"Material": "TG11"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
