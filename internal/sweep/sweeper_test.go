package sweep

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"lagerstatus/internal/reservation"
)

const testKey = "valid-key"

var fixedNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// memTable is an in-memory sheet. Writes are applied to later reads.
type memTable struct {
	mu      sync.Mutex
	values  [][]string
	writes  map[string]string
	reads   int
	readErr error
	failOn  map[string]error
}

func newMemTable(values [][]string) *memTable {
	return &memTable{values: values, writes: map[string]string{}, failOn: map[string]error{}}
}

func (m *memTable) SheetName() string     { return "Lager" }
func (m *memTable) SpreadsheetID() string { return "sheet-1" }

func (m *memTable) ReadRows(context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([][]string, len(m.values))
	for i, row := range m.values {
		out[i] = append([]string(nil), row...)
		for j := range out[i] {
			if v, ok := m.writes[reservation.CellAddress("Lager", j, i+1)]; ok {
				out[i][j] = v
			}
		}
	}
	return out, nil
}

func (m *memTable) WriteCell(_ context.Context, cell, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[cell]; err != nil {
		return err
	}
	m.writes[cell] = value
	return nil
}

func (m *memTable) opener() WriterOpener {
	return func(context.Context) (CellWriter, error) { return m, nil }
}

func (m *memTable) writtenCells() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.writes))
	for k, v := range m.writes {
		out[k] = v
	}
	return out
}

type mockNotifier struct {
	mock.Mock
}

func (n *mockNotifier) NotifySweep(ctx context.Context, res *Result) error {
	return n.Called(ctx, res).Error(0)
}

func newTestSweeper(table Table, opener WriterOpener, notifier Notifier) *Sweeper {
	s := NewSweeper(Config{AuthKey: testKey}, table, opener, nil, notifier, zerolog.New(io.Discard))
	s.now = func() time.Time { return fixedNow }
	return s
}

func exampleSheet() [][]string {
	return [][]string{
		{"Item", "Reserverad_av"},
		{"X", "Reserverad av Ana till 2020-01-01"},
		{"Y", "Reserverad av Bo till 2999-01-01"},
	}
}

func TestRun_ClearsExpiredOnly(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)

	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Active)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, map[string]string{"Lager!B2": ""}, table.writtenCells())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, fixedNow, res.Timestamp)
	assert.Equal(t, "Cleanup completed successfully. Removed 1 expired reservations.", res.Message())

	require.Len(t, res.Rows, 2)
	assert.Equal(t, RowOutcome{RowNumber: 2, Cell: "Lager!B2", State: RowCleared, Name: "Ana", ExpiryDate: "2020-01-01"}, res.Rows[0])
	assert.Equal(t, RowOutcome{RowNumber: 3, Cell: "Lager!B3", State: RowActive, Name: "Bo", ExpiryDate: "2999-01-01"}, res.Rows[1])
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := newTestSweeper(table, table.opener(), nil)

	first, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RemovedCount)

	second, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RemovedCount)
	assert.Equal(t, 1, second.Candidates)
}

func TestRun_ExpiresTodayIsKept(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"X", "Reserverad av Ana till 2025-03-10"},
		{"Y", "Reserverad av Bo till 2025-03-09"},
	})
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, map[string]string{"Lager!B3": ""}, table.writtenCells())
}

func TestRun_Unauthorized(t *testing.T) {
	for _, key := range []string{"", "valid-key ", "VALID-KEY", "invalid"} {
		t.Run(key, func(t *testing.T) {
			table := newMemTable(exampleSheet())
			opened := false
			s := newTestSweeper(table, func(context.Context) (CellWriter, error) {
				opened = true
				return table, nil
			}, nil)

			res, err := s.Run(context.Background(), key)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Nil(t, res)
			assert.Equal(t, 0, table.reads)
			assert.False(t, opened)
			assert.Empty(t, table.writtenCells())
		})
	}
}

func TestRun_EmptySecretRejectsEverything(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := NewSweeper(Config{}, table, table.opener(), nil, nil, zerolog.New(io.Discard))

	_, err := s.Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, table.reads)
}

func TestRun_PartialFailure(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"A", "Reserverad av Ana till 2020-01-01"},
		{"B", "Reserverad av Bo till 2020-01-02"},
	})
	table.failOn["Lager!B3"] = errors.New("quota exceeded")
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, RowClearFailed, res.Rows[1].State)
	assert.Contains(t, res.Rows[1].Error, "quota exceeded")
	assert.Equal(t, map[string]string{"Lager!B2": ""}, table.writtenCells())
}

func TestRun_FailureDoesNotStopLaterRows(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"A", "Reserverad av Ana till 2020-01-01"},
		{"B", "Reserverad av Bo till 2020-01-02"},
	})
	table.failOn["Lager!B2"] = errors.New("boom")
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, map[string]string{"Lager!B3": ""}, table.writtenCells())
}

func TestRun_WriterUnavailable(t *testing.T) {
	table := newMemTable(exampleSheet())
	calls := 0
	s := newTestSweeper(table, func(context.Context) (CellWriter, error) {
		calls++
		return nil, errors.New("no service account")
	}, nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RemovedCount)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, calls)
}

func TestRun_FetchError(t *testing.T) {
	table := newMemTable(nil)
	table.readErr = &googleapi.Error{Code: 403, Message: "denied"}
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.Error(t, err)
	assert.Nil(t, res)

	fe, ok := IsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 403, fe.Status)
	assert.Equal(t, "failed to fetch Google Sheets data: 403", err.Error())
}

func TestRun_SkipsUnparseableAnnotations(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"A", "Bokad av Ana, hämtas fredag"},
		{"B", "Reserved by Bo until 2020-01-01"},
		{"C", "Reserverad av Cia till 2020-02-30"},
		{"D", ""},
	})
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 0, res.RemovedCount)
	assert.Empty(t, table.writtenCells())
}

func TestRun_MissingColumn(t *testing.T) {
	table := newMemTable([][]string{{"Item", "Owner"}, {"X", "Reserverad av Ana till 2020-01-01"}})
	s := newTestSweeper(table, table.opener(), nil)

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Empty(t, table.writtenCells())
}

func TestRun_LockHeld(t *testing.T) {
	table := newMemTable(exampleSheet())
	locker := NewLocalLocker()
	s := NewSweeper(Config{AuthKey: testKey}, table, table.opener(), locker, nil, zerolog.New(io.Discard))

	unlock, err := locker.TryLock(context.Background(), "sheet-1:Lager", time.Minute)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), testKey)
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Equal(t, 0, table.reads)

	unlock()
	_, err = s.Run(context.Background(), testKey)
	assert.NoError(t, err)
}

func TestRun_Notifies(t *testing.T) {
	t.Run("changes", func(t *testing.T) {
		table := newMemTable(exampleSheet())
		notifier := new(mockNotifier)
		notifier.On("NotifySweep", mock.Anything, mock.MatchedBy(func(r *Result) bool {
			return r.RemovedCount == 1
		})).Return(errors.New("telegram down")).Once()
		s := newTestSweeper(table, table.opener(), notifier)

		res, err := s.Run(context.Background(), testKey)
		require.NoError(t, err)
		assert.Equal(t, 1, res.RemovedCount)
		notifier.AssertExpectations(t)
	})

	t.Run("nothing to report", func(t *testing.T) {
		table := newMemTable([][]string{{"Item", "Reserverad_av"}, {"Y", "Reserverad av Bo till 2999-01-01"}})
		notifier := new(mockNotifier)
		s := newTestSweeper(table, table.opener(), notifier)

		_, err := s.Run(context.Background(), testKey)
		require.NoError(t, err)
		notifier.AssertNotCalled(t, "NotifySweep", mock.Anything, mock.Anything)
	})
}

func TestRun_CancelledContext(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := newTestSweeper(table, table.opener(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, 0, res.RemovedCount)
	assert.Empty(t, table.writtenCells())
}

func TestRun_PacesWrites(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"A", "Reserverad av Ana till 2020-01-01"},
		{"B", "Reserverad av Bo till 2020-01-01"},
		{"C", "Reserverad av Cia till 2020-01-01"},
	})
	s := NewSweeper(Config{AuthKey: testKey, WriteInterval: 30 * time.Millisecond}, table, table.opener(), nil, nil, zerolog.New(io.Discard))

	start := time.Now()
	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RemovedCount)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRun_TimeZone(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	table := newMemTable([][]string{{"Item", "Reserverad_av"}, {"X", "Reserverad av Ana till 2025-03-09"}})
	s := NewSweeper(Config{AuthKey: testKey, Location: stockholm}, table, table.opener(), nil, nil, zerolog.New(io.Discard))
	// 23:30 UTC on the 9th is the 10th in Stockholm.
	s.now = func() time.Time { return time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC) }

	res, err := s.Run(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
}

func TestList(t *testing.T) {
	table := newMemTable([][]string{
		{"Item", "Reserverad_av"},
		{"X", "Reserverad av Ana till 2025-03-01"},
		{"Y", "Reserverad av Bo till 2025-03-15"},
		{"Z", "ring Bo"},
		{"W", ""},
	})
	s := newTestSweeper(table, table.opener(), nil)

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{
		RowNumber: 2, Cell: "Lager!B2", Item: "X", ReservedBy: "Reserverad av Ana till 2025-03-01",
		Parsed: true, Name: "Ana", ExpiryDate: "2025-03-01", DaysRemaining: -9, Expired: true,
	}, entries[0])
	assert.Equal(t, 5, entries[1].DaysRemaining)
	assert.False(t, entries[1].Expired)
	assert.False(t, entries[2].Parsed)
	assert.Equal(t, "ring Bo", entries[2].ReservedBy)
	assert.Empty(t, table.writtenCells())
}

func TestList_FetchError(t *testing.T) {
	table := newMemTable(nil)
	table.readErr = errors.New("network down")
	s := newTestSweeper(table, table.opener(), nil)

	_, err := s.List(context.Background())
	_, ok := IsFetchError(err)
	assert.True(t, ok)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize("s3cret", "s3cret"))
	assert.ErrorIs(t, Authorize("s3cret", "s3cret2"), ErrUnauthorized)
	assert.ErrorIs(t, Authorize("", ""), ErrUnauthorized)
}

func TestRowClearError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&RowClearError{Row: 4, Cell: "Lager!B4", Err: cause})
	assert.Equal(t, "clear row 4 (Lager!B4): boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRunEvery(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := newTestSweeper(table, table.opener(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunEvery(ctx, 5*time.Millisecond, time.Second)
		close(done)
	}()

	require.Eventually(t, func() bool {
		table.mu.Lock()
		defer table.mu.Unlock()
		return table.reads >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, map[string]string{"Lager!B2": ""}, table.writtenCells())
}

func TestRunEvery_DisabledInterval(t *testing.T) {
	table := newMemTable(exampleSheet())
	s := newTestSweeper(table, table.opener(), nil)

	s.RunEvery(context.Background(), 0, time.Second)
	assert.Equal(t, 0, table.reads)
}
