package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"harvestwatch/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock rows ---

// assign copies src into dest the way the driver would: sql.Scanner
// targets receive the raw value, everything else is set by reflection.
func assign(dest, src any) error {
	if s, ok := dest.(sql.Scanner); ok {
		return s.Scan(src)
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	sv := reflect.ValueOf(src)
	if !sv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("cannot assign %T to %T", src, dest)
	}
	dv.Elem().Set(sv)
	return nil
}

type mockRow struct {
	values  []any
	scanErr error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	for i, d := range dest {
		if err := assign(d, r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

type mockRows struct {
	data   [][]any
	idx    int
	closed bool
	errVal error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	return (&mockRow{values: r.data[r.idx]}).Scan(dest...)
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- Fixtures ---

const testEstimateID = "6f1c1b8e-93a4-4a43-9a55-0d8d1d3c2f10"

var testCreatedAt = time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC)

func testRecord() *types.EstimateRecord {
	eos := types.NewDate(2026, 3, 12)
	return &types.EstimateRecord{
		ID:        testEstimateID,
		FieldID:   "talhao-7",
		CreatedAt: testCreatedAt,
		Request: types.EstimateRequest{
			EOSNDVI:        &eos,
			NDVIConfidence: 70,
			CurrentNDVI:    0.62,
		},
		Result: types.EstimateResult{
			EOS:               eos,
			Method:            types.MethodNDVI,
			Confidence:        70,
			PhenologicalStage: types.StageGrainFilling,
			EvaluatedOn:       types.NewDate(2026, 2, 1),
			SanityRule:        types.SanityRuleNone,
		},
	}
}

// rowFor renders rec the way estimateColumns returns it.
func rowFor(t *testing.T, rec *types.EstimateRecord) []any {
	t.Helper()
	req, err := rec.Request.Value()
	require.NoError(t, err)
	res, err := rec.Result.Value()
	require.NoError(t, err)
	return []any{rec.ID, rec.FieldID, rec.CreatedAt, req, res}
}

// ============================================================
// Create
// ============================================================

func TestEstimateRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)
	ctx := context.Background()
	rec := testRecord()

	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO eos_estimates")
	}), mock.MatchedBy(func(args []any) bool {
		if len(args) != 11 {
			return false
		}
		field, ok := args[1].(*string)
		return ok && *field == "talhao-7" &&
			args[3] == rec.Result.EOS.Time &&
			args[4] == "NDVI" &&
			args[5] == 70 &&
			args[10] == testCreatedAt
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(ctx, rec))
	db.AssertExpectations(t)
}

func TestEstimateRepository_Create_AnonymousFieldIsNull(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)
	rec := testRecord()
	rec.FieldID = ""

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		p, ok := args[1].(*string)
		return ok && p == nil
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(context.Background(), rec))
	db.AssertExpectations(t)
}

func TestEstimateRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("unique_violation"))

	err := repo.Create(context.Background(), testRecord())
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// GetByID
// ============================================================

func TestEstimateRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)
	want := testRecord()

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{testEstimateID}).
		Return(&mockRow{values: rowFor(t, want)})

	got, err := repo.GetByID(context.Background(), testEstimateID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.FieldID, got.FieldID)
	assert.Equal(t, want.Result.EOS, got.Result.EOS)
	assert.Equal(t, want.Result.Method, got.Result.Method)
	assert.Equal(t, 0.62, got.Request.CurrentNDVI)
	require.NotNil(t, got.Request.EOSNDVI)
	assert.Equal(t, "2026-03-12", got.Request.EOSNDVI.String())
}

func TestEstimateRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), testEstimateID)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundEstimate, appErr.Code)
}

func TestEstimateRepository_GetByID_MalformedIDSkipsQuery(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundEstimate, appErr.Code)
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestEstimateRepository_GetByID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := repo.GetByID(context.Background(), testEstimateID)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// ListByField
// ============================================================

func TestEstimateRepository_ListByField_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	newer := testRecord()
	older := testRecord()
	older.ID = "0d3b6d1e-4c1e-4a8e-8a6b-1f2e3d4c5b6a"
	older.CreatedAt = testCreatedAt.Add(-24 * time.Hour)

	rows := newMockRows([][]any{rowFor(t, newer), rowFor(t, older)})
	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ORDER BY created_at DESC")
	}), []any{"talhao-7", 20}).Return(rows, nil)

	got, err := repo.ListByField(context.Background(), "talhao-7", 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
	assert.True(t, rows.closed, "rows must be closed")
	db.AssertExpectations(t)
}

func TestEstimateRepository_ListByField_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEstimateRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	got, err := repo.ListByField(context.Background(), "unknown", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEstimateRepository_ListByField_Errors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
		_, err := NewEstimateRepository(db).ListByField(context.Background(), "f", 5)
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})
	t.Run("iteration", func(t *testing.T) {
		db := new(mockDBTX)
		rows := newMockRows(nil)
		rows.errVal = errors.New("conn closed")
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
		_, err := NewEstimateRepository(db).ListByField(context.Background(), "f", 5)
		require.Error(t, err)
	})
}

// ============================================================
// Schema and probe
// ============================================================

func TestEnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, Schema, mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)
	require.NoError(t, EnsureSchema(context.Background(), db))

	failing := new(mockDBTX)
	failing.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("permission denied"))
	assert.Error(t, EnsureSchema(context.Background(), failing))
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	p := NewProbe(pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, "database", p.Name())
	assert.NoError(t, p.Check(context.Background()))

	down := NewProbe(pingFunc(func(context.Context) error { return errors.New("refused") }))
	assert.EqualError(t, down.Check(context.Background()), "refused")
}
