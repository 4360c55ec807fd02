package report

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/store"
)

// fixedEngine serves one matrix whose rows are given by the test.
type fixedEngine struct {
	id   string
	rows []model.BucketAssignment
}

type fixedMatrix struct{ engine *fixedEngine }

func (e *fixedEngine) CreateMatrix(context.Context, lsh.Params) (string, error) { return e.id, nil }

func (e *fixedEngine) FindMatrix(_ context.Context, matrixID string) (lsh.Matrix, error) {
	if matrixID != e.id {
		return nil, errors.NewMatrixNotFoundError(matrixID)
	}
	return fixedMatrix{engine: e}, nil
}

func (e *fixedEngine) PurgeMatrix(context.Context, string) error { return nil }

func (m fixedMatrix) ID() string { return m.engine.id }

func (m fixedMatrix) Params() lsh.Params { return lsh.DefaultParams() }

func (m fixedMatrix) CreateDocument(context.Context, string, string, map[string]any) error {
	return nil
}

func (m fixedMatrix) FindChildRows(context.Context) ([]model.BucketAssignment, error) {
	return m.engine.rows, nil
}

func row(docID string, buckets ...model.BucketID) model.BucketAssignment {
	return model.BucketAssignment{DocID: docID, Buckets: buckets}
}

// storeWith saves texts as documents 1..n of a new record and returns its ID.
func storeWith(t *testing.T, st store.Store, texts ...string) string {
	t.Helper()
	docs := make([]model.Document, len(texts))
	for i, text := range texts {
		docs[i] = model.Document{ID: strconv.Itoa(i + 1), Text: text}
	}
	rec := model.NewTrackingRecord(model.User{ID: "alice"}, time.Now())
	_, err := st.Supersede(context.Background(), rec, docs)
	require.NoError(t, err)
	return rec.ID
}

func TestSetHash_OrderIndependent(t *testing.T) {
	a := []model.DocKey{{RecordID: "r", DocID: "1"}, {RecordID: "r", DocID: "2"}}
	b := []model.DocKey{{RecordID: "r", DocID: "2"}, {RecordID: "r", DocID: "1"}}

	assert.Equal(t, SetHash(a), SetHash(b))
	assert.Len(t, SetHash(a), 7)
	assert.NotEqual(t, SetHash(a), SetHash([]model.DocKey{{RecordID: "r", DocID: "1"}, {RecordID: "r", DocID: "3"}}))
}

func TestBuild_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "dup one", "dup one", "unique text")
	engine := &fixedEngine{id: "m-1", rows: []model.BucketAssignment{
		row("1", 10, 11),
		row("2", 10, 12),
		row("3", 13),
	}}

	sets, err := NewReporter(engine, st).Build(ctx, "m-1", recordID)
	require.NoError(t, err)

	require.Len(t, sets, 1)
	set := sets[0]
	assert.Len(t, set.Members, 2)
	assert.Equal(t, []model.BucketID{10}, set.Buckets)
	require.Len(t, set.Groups, 1)
	assert.Equal(t, "dup one", set.Groups[0].Text)
	assert.Equal(t, []string{"1", "2"}, set.Groups[0].DocIDs)

	rendered := Render(sets)
	assert.Equal(t, "\nFor 2 tweets, 1 buckets: [10]\n    [1 2]\n    dup one", rendered)
}

func TestBuild_GroupIDsFollowFetchOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "filler " + strconv.Itoa(i+1)
	}
	texts[1] = "retweeted text"
	texts[9] = "retweeted text"
	texts[10] = "retweeted text"
	recordID := storeWith(t, st, texts...)
	engine := &fixedEngine{id: "m-1", rows: []model.BucketAssignment{
		row("11", 3),
		row("10", 3),
		row("2", 3),
	}}

	sets, err := NewReporter(engine, st).Build(ctx, "m-1", recordID)
	require.NoError(t, err)

	require.Len(t, sets, 1)
	require.Len(t, sets[0].Groups, 1)
	assert.Equal(t, []string{"2", "10", "11"}, sets[0].Groups[0].DocIDs)
	assert.Equal(t, "\nFor 3 tweets, 1 buckets: [3]\n    [2 10 11]\n    retweeted text", Render(sets))

	// Set identity still hashes the lexically sorted keys.
	assert.Equal(t, "TrackingRecord:"+recordID+"/Document:10", sets[0].Members[0].String())
}

func TestFetchOrderLess(t *testing.T) {
	tests := []struct {
		a, b string
		less bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"3", "3", false},
		{"9", "x", true},
		{"x", "9", false},
		{"a", "b", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.less, fetchOrderLess(tt.a, tt.b), "%s < %s", tt.a, tt.b)
	}
}

func TestBuild_BucketsWithSameMembersCollapse(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "hello world", "hello world!", "other")
	engine := &fixedEngine{id: "m-1", rows: []model.BucketAssignment{
		row("1", 5, 6, 7),
		row("2", 6, 5),
		row("3", 7),
	}}

	sets, err := NewReporter(engine, st).Build(ctx, "m-1", recordID)
	require.NoError(t, err)

	require.Len(t, sets, 2)
	assert.Equal(t, []model.BucketID{5, 6}, sets[0].Buckets, "buckets 5 and 6 hold the same pair")
	require.Len(t, sets[0].Groups, 2, "same buckets but different texts")
	assert.Equal(t, "hello world", sets[0].Groups[0].Text)
	assert.Equal(t, "hello world!", sets[0].Groups[1].Text)

	assert.Equal(t, []model.BucketID{7}, sets[1].Buckets)
	assert.NotEqual(t, sets[0].SetHash, sets[1].SetHash)
}

func TestBuild_SingletonBucketsIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "a", "b", "c")
	engine := &fixedEngine{id: "m-1", rows: []model.BucketAssignment{
		row("1", 1),
		row("2", 2),
		row("3", 3),
	}}

	report, err := NewReporter(engine, st).Report(ctx, "m-1", recordID)
	require.NoError(t, err)
	assert.Equal(t, "", report)
}

func TestBuild_RepeatedDocumentTreatedAsSingleton(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "a", "b")
	engine := &fixedEngine{id: "m-1", rows: []model.BucketAssignment{
		row("1", 9, 9),
		row("2", 4),
	}}

	sets, err := NewReporter(engine, st).Build(ctx, "m-1", recordID)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestBuild_EmptyAndPartialMatrix(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "dup one", "dup one")

	engine := &fixedEngine{id: "m-1"}
	report, err := NewReporter(engine, st).Report(ctx, "m-1", recordID)
	require.NoError(t, err)
	assert.Empty(t, report)

	engine.rows = []model.BucketAssignment{row("1", 3)}
	report, err = NewReporter(engine, st).Report(ctx, "m-1", recordID)
	require.NoError(t, err)
	assert.Empty(t, report, "a half indexed pair has no collision yet")
}

func TestBuild_MatrixNotFound(t *testing.T) {
	engine := &fixedEngine{id: "m-1"}
	_, err := NewReporter(engine, store.NewMemoryStore()).Report(context.Background(), "m-2", "rec")
	assert.True(t, errors.Is(err, errors.ErrMatrixNotFound))
}

func TestReport_WithMemoryEngine(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recordID := storeWith(t, st, "dup one", "dup one", "unique text")

	engine := lsh.NewMemoryEngine(0)
	matrixID, err := engine.CreateMatrix(ctx, lsh.DefaultParams())
	require.NoError(t, err)
	matrix, err := engine.FindMatrix(ctx, matrixID)
	require.NoError(t, err)
	docs, err := st.ListDocuments(ctx, recordID)
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, matrix.CreateDocument(ctx, doc.ID, doc.Text, map[string]any{}))
	}

	sets, err := NewReporter(engine, st).Build(ctx, matrixID, recordID)
	require.NoError(t, err)

	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Members, 2)
	assert.Len(t, sets[0].Buckets, lsh.DefaultBands, "identical texts share every band")
	require.Len(t, sets[0].Groups, 1)
	assert.Equal(t, []string{"1", "2"}, sets[0].Groups[0].DocIDs)
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(nil))
}
