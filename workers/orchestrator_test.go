package workers_test

import (
	"context"
	"testing"
	"time"

	"partnership-sync/services"
	"partnership-sync/workers"
	mock_workers "partnership-sync/workers/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncer_SyncAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	down := &services.SourceFetchError{Endpoint: "any", StatusCode: 503}

	tests := []struct {
		name       string
		failing    map[string]bool
		wantStatus string
		wantErr    bool
	}{
		{name: "all entities succeed", wantStatus: workers.StatusSyncCompleted},
		{name: "one entity fails", failing: map[string]bool{"/transaction/list": true}, wantStatus: workers.StatusPartialError},
		{
			name:       "every entity fails",
			failing:    map[string]bool{"/customer/list": true, "/transaction/list": true, "/credit/history": true},
			wantStatus: workers.StatusError,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := mock_workers.NewMockPageFetcher(ctrl)
			store := mock_workers.NewMockSyncStore(ctrl)

			var order []string
			fetcher.EXPECT().
				FetchPage(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req services.PageRequest) (*services.Page, error) {
					order = append(order, req.Endpoint)
					if tt.failing[req.Endpoint] {
						return nil, down
					}
					return &services.Page{}, nil
				}).
				Times(3)

			s := newSyncer(fetcher, store, nil, 100, 10)
			got, err := s.SyncAll(context.Background(), workers.RunOptions{})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, []string{"/customer/list", "/transaction/list", "/credit/history"}, order)
			require.NotNil(t, got.Customers)
			require.NotNil(t, got.Transactions)
			require.NotNil(t, got.Usage)
		})
	}
}

func TestStartSyncScheduler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mock_workers.NewMockPageFetcher(ctrl)
	store := mock_workers.NewMockSyncStore(ctrl)
	s := newSyncer(fetcher, store, nil, 100, 10)

	sched, err := workers.StartSyncScheduler(context.Background(), s, time.Hour)
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 1)
	assert.NoError(t, sched.Shutdown())
}
