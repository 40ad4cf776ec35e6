package sheetsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobidash/importd/internal/core"
)

type memConfigStore struct {
	cfg *core.SheetsConfig
}

func (m *memConfigStore) SaveSheetsConfig(_ context.Context, cfg core.SheetsConfig) error {
	m.cfg = &cfg
	return nil
}

func (m *memConfigStore) GetSheetsConfig(_ context.Context) (*core.SheetsConfig, error) {
	return m.cfg, nil
}

type memLogStore struct {
	nextID  int64
	byID    map[int64]*core.ImportLogEntry
	byKey   map[string]int64
	pending map[int64]string
}

func newMemLogStore() *memLogStore {
	return &memLogStore{
		byID:    make(map[int64]*core.ImportLogEntry),
		byKey:   make(map[string]int64),
		pending: make(map[int64]string),
	}
}

func (m *memLogStore) CreateImportLog(_ context.Context, params core.CreateImportLogParams) (int64, error) {
	m.nextID++
	m.byID[m.nextID] = &core.ImportLogEntry{
		ID:       m.nextID,
		Filename: params.Filename,
		Status:   core.StatusProcessing,
	}
	if params.IdempotencyKey != "" {
		m.pending[m.nextID] = params.IdempotencyKey
	}
	return m.nextID, nil
}

func (m *memLogStore) FinishImportLog(_ context.Context, params core.FinishImportLogParams) error {
	entry := m.byID[params.ID]
	entry.Status = params.Status
	entry.SuccessRows = params.SuccessRows
	entry.ErrorRows = params.ErrorRows
	if key, ok := m.pending[params.ID]; ok {
		m.byKey[key] = params.ID
	}
	return nil
}

func (m *memLogStore) ListImportLogs(context.Context, int) ([]core.ImportLogEntry, error) {
	return nil, nil
}

func (m *memLogStore) FindByIdempotencyKey(_ context.Context, key string) (*core.ImportLogEntry, error) {
	id, ok := m.byKey[key]
	if !ok {
		return nil, nil
	}
	return m.byID[id], nil
}

type memRecordStore struct {
	rides   []core.Ride
	targets []core.Target
}

func (m *memRecordStore) InsertRides(_ context.Context, rides []core.Ride) error {
	m.rides = append(m.rides, rides...)
	return nil
}
func (m *memRecordStore) InsertDrivers(context.Context, []core.Driver) error { return nil }
func (m *memRecordStore) InsertTargets(_ context.Context, targets []core.Target) error {
	m.targets = append(m.targets, targets...)
	return nil
}

func newSyncFixture(t *testing.T, sheetCSV map[string]string) (*Service, *memConfigStore, *memRecordStore) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		csv, ok := sheetCSV[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csv))
	}))
	t.Cleanup(srv.Close)

	records := &memRecordStore{}
	importer, err := core.NewService(newMemLogStore(), records, t.TempDir())
	require.NoError(t, err)

	store := &memConfigStore{}
	svc := New(store, importer, WithExportURL(srv.URL+"/export?id=%s"))
	return svc, store, records
}

func TestSaveConfig(t *testing.T) {
	svc, store, _ := newSyncFixture(t, nil)
	ctx := context.Background()

	t.Run("rejects empty config", func(t *testing.T) {
		err := svc.SaveConfig(ctx, core.SheetsConfig{})
		require.Error(t, err)
		require.Nil(t, store.cfg)
	})

	t.Run("persists ids", func(t *testing.T) {
		err := svc.SaveConfig(ctx, core.SheetsConfig{SpreadsheetRides: "sheet-a"})
		require.NoError(t, err)

		cfg, err := svc.Config(ctx)
		require.NoError(t, err)
		require.Equal(t, "sheet-a", cfg.SpreadsheetRides)
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured", func(t *testing.T) {
		svc, _, _ := newSyncFixture(t, nil)

		_, err := svc.Sync(ctx, false)
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("pulls configured sheets", func(t *testing.T) {
		svc, _, records := newSyncFixture(t, map[string]string{
			"sheet-rides": "data,cliente,motorista,cidade,status\n" +
				"2025-01-15,Maria,Joao,Santarem,concluida\n",
			"sheet-targets": "cidade,mes,meta_corridas\nSantarem,2025-01,1200\n",
		})
		require.NoError(t, svc.SaveConfig(ctx, core.SheetsConfig{
			SpreadsheetRides:   "sheet-rides",
			SpreadsheetTargets: "sheet-targets",
		}))

		result, err := svc.Sync(ctx, false)
		require.NoError(t, err)

		require.True(t, result.Outcomes[core.ImportRides].Success)
		require.True(t, result.Outcomes[core.ImportTargets].Success)
		require.Len(t, records.rides, 1)
		require.Len(t, records.targets, 1)
		require.Equal(t, core.SourceSheets, records.rides[0].Source)
	})

	t.Run("one failing sheet does not stop the other", func(t *testing.T) {
		svc, _, records := newSyncFixture(t, map[string]string{
			"sheet-targets": "cidade,mes,meta_corridas\nSantarem,2025-01,1200\n",
		})
		require.NoError(t, svc.SaveConfig(ctx, core.SheetsConfig{
			SpreadsheetRides:   "missing-sheet",
			SpreadsheetTargets: "sheet-targets",
		}))

		result, err := svc.Sync(ctx, false)
		require.NoError(t, err)

		require.False(t, result.Outcomes[core.ImportRides].Success)
		require.Contains(t, result.Outcomes[core.ImportRides].Error, "unexpected status")
		require.True(t, result.Outcomes[core.ImportTargets].Success)
		require.Len(t, records.targets, 1)
	})

	t.Run("unchanged sheet is not re-imported", func(t *testing.T) {
		svc, _, records := newSyncFixture(t, map[string]string{
			"sheet-targets": "cidade,mes,meta_corridas\nSantarem,2025-01,1200\n",
		})
		require.NoError(t, svc.SaveConfig(ctx, core.SheetsConfig{SpreadsheetTargets: "sheet-targets"}))

		_, err := svc.Sync(ctx, false)
		require.NoError(t, err)
		require.Len(t, records.targets, 1)

		result, err := svc.Sync(ctx, false)
		require.NoError(t, err)
		require.True(t, result.Outcomes[core.ImportTargets].Duplicate)
		require.Len(t, records.targets, 1)

		result, err = svc.Sync(ctx, true)
		require.NoError(t, err)
		require.False(t, result.Outcomes[core.ImportTargets].Duplicate)
		require.Len(t, records.targets, 2)
	})

	t.Run("unconfigured sheet skipped", func(t *testing.T) {
		svc, _, _ := newSyncFixture(t, map[string]string{
			"sheet-targets": "cidade,mes,meta_corridas\nSantarem,2025-01,1200\n",
		})
		require.NoError(t, svc.SaveConfig(ctx, core.SheetsConfig{SpreadsheetTargets: "sheet-targets"}))

		result, err := svc.Sync(ctx, false)
		require.NoError(t, err)

		_, ok := result.Outcomes[core.ImportRides]
		require.False(t, ok)
	})
}
