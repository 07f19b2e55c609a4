package workers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"partnership-sync/config"
	"partnership-sync/logger"
	"partnership-sync/models"
	"partnership-sync/services"
	"partnership-sync/workers"
	mock_workers "partnership-sync/workers/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow       = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	testFullStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	testEndpoints = config.MarketplaceConfig{
		CustomersPath:    "/customer/list",
		TransactionsPath: "/transaction/list",
		UsagePath:        "/credit/history",
		UsageMethod:      "GET",
	}
)

func customerIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%03d", prefix, i+1)
	}
	return ids
}

func customerPage(ids ...string) *services.Page {
	p := &services.Page{Records: make([]json.RawMessage, 0, len(ids))}
	for _, id := range ids {
		p.Records = append(p.Records, json.RawMessage(fmt.Sprintf(
			`{"guid":%q,"name":"Customer %s","created_at":"2025-01-05T10:00:00Z"}`, id, id)))
	}
	p.Raw = []byte(`{"data":[]}`)
	return p
}

func newSyncer(fetcher workers.PageFetcher, store workers.SyncStore, archive workers.PageArchiver, pageSize, maxPages int) *workers.Syncer {
	s := workers.NewSyncer(fetcher, store, archive, testEndpoints, config.SyncConfig{
		PageSize:  pageSize,
		MaxPages:  maxPages,
		FullStart: testFullStart,
	})
	s.SetClock(func() time.Time { return testNow })
	return s
}

// pagesByNumber serves pages[n-1] for page n and an empty page past the end.
func pagesByNumber(pages ...*services.Page) func(context.Context, services.PageRequest) (*services.Page, error) {
	return func(_ context.Context, req services.PageRequest) (*services.Page, error) {
		if req.Page-1 < len(pages) {
			return pages[req.Page-1], nil
		}
		return &services.Page{}, nil
	}
}

func TestSyncCustomers_Pagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	totalPages := 1
	fullButLast := customerPage(customerIDs("tp", 2)...)
	fullButLast.TotalPages = &totalPages

	totalCount := 4
	countedFirst := customerPage(customerIDs("tc1", 2)...)
	countedFirst.TotalCount = &totalCount
	countedSecond := customerPage(customerIDs("tc2", 2)...)
	countedSecond.TotalCount = &totalCount

	tests := []struct {
		name        string
		limit       int
		pages       []*services.Page
		wantFetched int
		wantUpserts int
		wantStop    workers.StopReason
	}{
		{
			name:        "full page then short page",
			limit:       100,
			pages:       []*services.Page{customerPage(customerIDs("a", 100)...), customerPage(customerIDs("b", 40)...)},
			wantFetched: 2,
			wantUpserts: 140,
			wantStop:    workers.StopShortPage,
		},
		{
			name:        "empty first page",
			limit:       100,
			pages:       []*services.Page{{}},
			wantFetched: 1,
			wantUpserts: 0,
			wantStop:    workers.StopEmptyPage,
		},
		{
			name:        "full pages then empty page",
			limit:       2,
			pages:       []*services.Page{customerPage("x1", "x2"), customerPage("x3", "x4")},
			wantFetched: 3,
			wantUpserts: 4,
			wantStop:    workers.StopEmptyPage,
		},
		{
			name:        "reported total pages reached",
			limit:       2,
			pages:       []*services.Page{fullButLast},
			wantFetched: 1,
			wantUpserts: 2,
			wantStop:    workers.StopTotalPages,
		},
		{
			name:        "reported total count reached",
			limit:       2,
			pages:       []*services.Page{countedFirst, countedSecond},
			wantFetched: 2,
			wantUpserts: 4,
			wantStop:    workers.StopTotalCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := mock_workers.NewMockPageFetcher(ctrl)
			store := mock_workers.NewMockSyncStore(ctrl)

			fetcher.EXPECT().
				FetchPage(gomock.Any(), gomock.Any()).
				DoAndReturn(pagesByNumber(tt.pages...)).
				Times(tt.wantFetched)
			store.EXPECT().
				UpsertCustomer(gomock.Any(), gomock.Any()).
				Return(nil).
				Times(tt.wantUpserts)

			s := newSyncer(fetcher, store, nil, tt.limit, 50)
			got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

			require.NoError(t, err)
			assert.Equal(t, workers.StatusSuccess, got.Status)
			assert.Equal(t, workers.StateDone, got.State)
			assert.Equal(t, tt.wantFetched, got.PagesFetched)
			assert.Equal(t, tt.wantUpserts, got.TotalProcessed)
			assert.Equal(t, tt.wantUpserts, got.SuccessCount)
			assert.Equal(t, tt.wantStop, got.StopReason)
			assert.NotEmpty(t, got.RunID)
		})
	}
}

func TestSyncCustomers_RequestShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	var got []services.PageRequest
	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
			got = append(got, req)
			if req.Page == 3 {
				return customerPage("p3-1", "p3-2"), nil
			}
			return customerPage("p4-1"), nil
		}).
		Times(2)
	store.EXPECT().UpsertCustomer(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	s := newSyncer(fetcher, store, nil, 500, 50)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	summary, err := s.SyncCustomers(context.Background(), workers.RunOptions{
		Page:      3,
		Limit:     2,
		StartDate: &start,
		EndDate:   &end,
		Status:    "active",
		Filter:    map[string]any{"referral_code": "GOV01"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "/customer/list", got[0].Endpoint)
	assert.Equal(t, "POST", got[0].Method)
	assert.Equal(t, 3, got[0].Page)
	assert.Equal(t, 4, got[1].Page)
	assert.Equal(t, 2, got[0].Limit)
	assert.Equal(t, "2024-06-01", got[0].Filter["start_date"])
	assert.Equal(t, "2024-06-30", got[0].Filter["end_date"])
	assert.Equal(t, "active", got[0].Filter["status"])
	assert.Equal(t, "GOV01", got[0].Filter["referral_code"])
	assert.Equal(t, "full", summary.Mode)
	assert.Equal(t, "2024-06-01", summary.WindowStart)
	assert.Equal(t, "2024-06-30", summary.WindowEnd)
}

func TestSyncCustomers_LimitClampedToMaxPageSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
			assert.Equal(t, config.MaxPageSize, req.Limit)
			return &services.Page{}, nil
		})

	s := newSyncer(fetcher, store, nil, 500, 50)
	_, err := s.SyncCustomers(context.Background(), workers.RunOptions{Limit: 10000})
	require.NoError(t, err)
}

func TestSyncCustomers_DuplicateAcrossPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(pagesByNumber(customerPage("c-1", "c-2"), customerPage("c-2", "c-3"))).
		Times(3)

	upserted := map[string]int{}
	store.EXPECT().
		UpsertCustomer(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *models.Customer) error {
			upserted[c.GUID]++
			return nil
		}).
		Times(3)

	s := newSyncer(fetcher, store, nil, 2, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c-1": 1, "c-2": 1, "c-3": 1}, upserted)
	assert.Equal(t, 4, got.TotalProcessed)
	assert.Equal(t, 3, got.SuccessCount)
	assert.Equal(t, 1, got.DuplicateCount)
	assert.Equal(t, 0, got.ErrorCount)
	assert.Equal(t, workers.StatusSuccess, got.Status)
}

func TestSyncCustomers_SafetyCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	// The source never signals the end.
	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
			return customerPage(customerIDs(fmt.Sprintf("p%d", req.Page), 2)...), nil
		}).
		Times(3)
	store.EXPECT().UpsertCustomer(gomock.Any(), gomock.Any()).Return(nil).Times(6)

	s := newSyncer(fetcher, store, nil, 2, 3)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 3, got.PagesFetched)
	assert.Equal(t, workers.StopSafetyCap, got.StopReason)
	assert.Equal(t, workers.StateDone, got.State)
}

func TestSyncCustomers_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	page := customerPage("ok-1", "bad-db", "ok-2")
	page.Records = append(page.Records, json.RawMessage(`{"name":"no identifier"}`))

	fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(page, nil)
	store.EXPECT().
		UpsertCustomer(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *models.Customer) error {
			if c.GUID == "bad-db" {
				return &services.UpsertError{Entity: "customer", GUID: c.GUID, Err: errors.New("value too long")}
			}
			return nil
		}).
		Times(3)

	s := newSyncer(fetcher, store, nil, 10, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, workers.StatusPartialError, got.Status)
	assert.Equal(t, 4, got.TotalProcessed)
	assert.Equal(t, 2, got.SuccessCount)
	assert.Equal(t, 2, got.ErrorCount)
	require.Len(t, got.SampleErrors, 2)
	assert.Contains(t, got.SampleErrors[0], "bad-db")
	assert.Contains(t, got.SampleErrors[1], "guid")
}

func TestSyncCustomers_ErrorSampleIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	page := &services.Page{}
	for i := 0; i < 15; i++ {
		page.Records = append(page.Records, json.RawMessage(`{"name":"anonymous"}`))
	}
	fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(page, nil)

	s := newSyncer(fetcher, store, nil, 100, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 15, got.ErrorCount)
	assert.Len(t, got.SampleErrors, workers.MaxSampleErrors)
}

func TestSyncCustomers_SourceFailureKeepsProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	sourceErr := &services.SourceFetchError{Endpoint: "/customer/list", StatusCode: 500, BodyPrefix: "upstream down"}
	gomock.InOrder(
		fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(customerPage("c-1", "c-2"), nil),
		fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(nil, sourceErr),
	)
	store.EXPECT().UpsertCustomer(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s := newSyncer(fetcher, store, nil, 2, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.Error(t, err)
	assert.True(t, workers.IsSourceFailure(err))
	require.NotNil(t, got)
	assert.Equal(t, workers.StateFailed, got.State)
	assert.Equal(t, workers.StatusError, got.Status)
	assert.Equal(t, 1, got.PagesFetched)
	assert.Equal(t, 2, got.SuccessCount)
	assert.Contains(t, got.Error, "upstream down")
}

func TestSyncCustomers_CancelledContextStopsBeforeFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSyncer(fetcher, store, nil, 2, 50)
	got, err := s.SyncCustomers(ctx, workers.RunOptions{})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, workers.IsSourceFailure(err))
	assert.Equal(t, workers.StateFailed, got.State)
	assert.Equal(t, 0, got.PagesFetched)
}

func TestSyncCustomers_IncrementalWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	latest := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		latest    *time.Time
		wantStart string
	}{
		{name: "overlaps the newest stored record by a day", latest: &latest, wantStart: "2025-01-09"},
		{name: "empty table falls back to the full start", latest: nil, wantStart: "2020-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := mock_workers.NewMockPageFetcher(ctrl)
			store := mock_workers.NewMockSyncStore(ctrl)

			store.EXPECT().
				LatestCreatedAt(gomock.Any(), gomock.AssignableToTypeOf(&models.Customer{})).
				Return(tt.latest, nil)
			fetcher.EXPECT().
				FetchPage(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
					assert.Equal(t, tt.wantStart, req.Filter["start_date"])
					assert.Equal(t, "2025-01-15", req.Filter["end_date"])
					return &services.Page{}, nil
				})

			s := newSyncer(fetcher, store, nil, 100, 50)
			got, err := s.SyncCustomers(context.Background(), workers.RunOptions{Incremental: true})

			require.NoError(t, err)
			assert.Equal(t, "incremental", got.Mode)
			assert.Equal(t, tt.wantStart, got.WindowStart)
			assert.Equal(t, "2025-01-15", got.WindowEnd)
		})
	}
}

func TestSyncCustomers_IncrementalWindowQueryFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)
	store.EXPECT().LatestCreatedAt(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	s := newSyncer(fetcher, store, nil, 100, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{Incremental: true})

	require.Error(t, err)
	assert.False(t, workers.IsSourceFailure(err))
	assert.Equal(t, workers.StatusError, got.Status)
	assert.Equal(t, 0, got.PagesFetched)
}

func TestRunner_Window(t *testing.T) {
	r := &workers.Runner{FullStart: testFullStart, Now: func() time.Time { return testNow }}
	latest := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)

	start, end, err := r.Window(context.Background(), func(context.Context) (*time.Time, error) {
		return &latest, nil
	}, workers.RunOptions{Incremental: true})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 9, 14, 0, 0, 0, time.UTC), start)
	assert.Equal(t, testNow, end)
}

func TestSyncCustomers_ArchivesRawPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)
	archive := mock_workers.NewMockPageArchiver(ctrl)

	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(pagesByNumber(customerPage("c-1", "c-2"), customerPage("c-3"))).
		Times(2)
	store.EXPECT().UpsertCustomer(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	gomock.InOrder(
		archive.EXPECT().ArchivePage(gomock.Any(), "customers", gomock.Any(), 1, gomock.Any()).Return(nil),
		archive.EXPECT().ArchivePage(gomock.Any(), "customers", gomock.Any(), 2, gomock.Any()).Return(errors.New("bucket unavailable")),
	)

	s := newSyncer(fetcher, store, archive, 2, 50)
	got, err := s.SyncCustomers(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, workers.StatusSuccess, got.Status)
	assert.Equal(t, 3, got.SuccessCount)
}

func TestSyncTransactions_ChildErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	page := &services.Page{Records: []json.RawMessage{
		json.RawMessage(`{
			"guid": "trx-1",
			"status": "finished",
			"grand_total": "150000",
			"details": [
				{"guid": "d-1", "price": 100000},
				{"price": 50000},
				{"guid": "d-3", "price": 50000}
			]
		}`),
	}}
	fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(page, nil)
	store.EXPECT().
		UpsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec services.TransactionRecord) ([]error, error) {
			assert.Equal(t, "trx-1", rec.Transaction.GUID)
			assert.Len(t, rec.Transaction.Details, 2)
			return []error{&services.UpsertError{Entity: "transaction_detail", GUID: "d-3", Err: errors.New("fk violation")}}, nil
		})

	s := newSyncer(fetcher, store, nil, 100, 50)
	got, err := s.SyncTransactions(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Equal(t, 0, got.ErrorCount)
	assert.Equal(t, 2, got.ChildErrorCount)
	assert.Equal(t, workers.StatusPartialError, got.Status)
	assert.Len(t, got.SampleErrors, 2)
}

func TestSyncUsage_UsesConfiguredMethod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	fetcher.EXPECT().
		FetchPage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
			assert.Equal(t, "/credit/history", req.Endpoint)
			assert.Equal(t, "GET", req.Method)
			return &services.Page{Records: []json.RawMessage{
				json.RawMessage(`{"guid":"u-1","type":"debit","amount":"25","customer_guid":"c-1","created_at":"2025-01-14T09:00:00Z"}`),
			}}, nil
		})
	store.EXPECT().
		UpsertCreditUsage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.CreditUsage) error {
			assert.Equal(t, models.CreditUsageDebit, u.Type)
			require.NotNil(t, u.CustomerGUID)
			assert.Equal(t, "c-1", *u.CustomerGUID)
			return nil
		})

	s := newSyncer(fetcher, store, nil, 100, 50)
	got, err := s.SyncUsage(context.Background(), workers.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, "usage", got.Entity)
	assert.Equal(t, 1, got.SuccessCount)
}

func TestSyncCustomers_LogsCarryRunFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), gomock.Any()).Return(customerPage("c-1"), nil)
	store.EXPECT().UpsertCustomer(gomock.Any(), gomock.Any()).Return(nil)

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))

	s := newSyncer(fetcher, store, nil, 100, 50)
	summary, err := s.SyncCustomers(ctx, workers.RunOptions{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"`+summary.RunID+`"`)
	assert.Contains(t, out, `"entity":"customers"`)
	assert.Contains(t, out, "sync run completed")
}
