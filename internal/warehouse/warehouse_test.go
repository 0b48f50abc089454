package warehouse

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-risk-service/internal/database"
	"github.com/heart-risk-service/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func fixtureRows() []domain.Row {
	return []domain.Row{
		{Features: domain.SampleFeatures(), Target: 1},
		{Features: domain.Features{Age: 37, Sex: 1, CP: 2, Trestbps: 130, Chol: 250, Fbs: 0, RestECG: 1, Thalach: 187, Exang: 0, Oldpeak: 3.5, Slope: 0, CA: 0, Thal: 2}, Target: 1},
		{Features: domain.Features{Age: 41, Sex: 0, CP: 1, Trestbps: 130, Chol: 204, Fbs: 0, RestECG: 0, Thalach: 172, Exang: 0, Oldpeak: 1.4, Slope: 2, CA: 0, Thal: 2}, Target: 1},
		{Features: domain.Features{Age: 63, Sex: 1, CP: 0, Trestbps: 130, Chol: 254, Fbs: 0, RestECG: 0, Thalach: 147, Exang: 0, Oldpeak: 1.4, Slope: 1, CA: 1, Thal: 3}, Target: 0},
		{Features: domain.Features{Age: 57, Sex: 0, CP: 0, Trestbps: 140, Chol: 241, Fbs: 0, RestECG: 1, Thalach: 123, Exang: 1, Oldpeak: 0.2, Slope: 1, CA: 0, Thal: 3}, Target: 0},
	}
}

// randomRows generates rows with small categorical domains so that lookups
// see repeated values and some codes are absent.
func randomRows(seed int64, n int) []domain.Row {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{
			Features: domain.Features{
				Age:      29 + rng.Intn(49),
				Sex:      rng.Intn(2),
				CP:       rng.Intn(4),
				Trestbps: 94 + rng.Intn(107),
				Chol:     126 + rng.Intn(439),
				Fbs:      rng.Intn(2),
				RestECG:  rng.Intn(3),
				Thalach:  71 + rng.Intn(132),
				Exang:    rng.Intn(2),
				Oldpeak:  float64(rng.Intn(63)) / 10,
				Slope:    rng.Intn(3),
				CA:       rng.Intn(5),
				Thal:     1 + rng.Intn(3),
			},
			Target: rng.Intn(2),
		}
	}
	return rows
}

func buildStore(t *testing.T, rows []domain.Row) (string, *BuildReport) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heart.db")
	report, err := NewBuilder(testLogger()).Build(context.Background(), rows, path)
	require.NoError(t, err)
	return path, report
}

func TestBuild_Report(t *testing.T) {
	path, report := buildStore(t, fixtureRows())

	assert.Equal(t, path, report.Path)
	assert.Equal(t, 5, report.Patients)
	assert.Equal(t, 5, report.Exams)
	assert.Equal(t, []int{0, 1, 2, 3}, report.Lookups[domain.ColCP])
	assert.Equal(t, []int{0, 1}, report.Lookups[domain.ColRestECG])
	assert.Equal(t, []int{0, 1, 2}, report.Lookups[domain.ColSlope])
	assert.Equal(t, []int{1, 2, 3}, report.Lookups[domain.ColThal])

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestBuild_NoTemporaryFilesLeft(t *testing.T) {
	path, _ := buildStore(t, fixtureRows())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "heart.db", entries[0].Name())
}

func TestBuild_StoreIsWorldReadable(t *testing.T) {
	path, _ := buildStore(t, fixtureRows())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestReconstruct_RoundTrip(t *testing.T) {
	for _, seed := range []int64{1, 7, 42} {
		rows := randomRows(seed, 120)
		path, _ := buildStore(t, rows)

		got, err := Reconstruct(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, rows, got, "seed %d", seed)
	}
}

func TestReconstruct_EmptySource(t *testing.T) {
	path, report := buildStore(t, nil)
	assert.Zero(t, report.Exams)

	got, err := Reconstruct(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookups_Completeness(t *testing.T) {
	rows := randomRows(3, 40)
	path, _ := buildStore(t, rows)

	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	for _, col := range domain.CategoricalColumns {
		observed := map[int]bool{}
		for _, row := range rows {
			v, _ := row.Categorical(col)
			observed[v] = true
		}

		codes, err := r.Lookups(context.Background(), col)
		require.NoError(t, err)
		require.Len(t, codes, len(observed), "column %s", col)
		for _, lc := range codes {
			assert.True(t, observed[lc.Code], "code %d of %s not in source", lc.Code, col)
			assert.Equal(t, LookupDescription(col, lc.Code), lc.Description)
		}
	}
}

func TestLookups_NotCategorical(t *testing.T) {
	path, _ := buildStore(t, fixtureRows())
	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Lookups(context.Background(), domain.ColAge)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCheckIntegrity(t *testing.T) {
	path, _ := buildStore(t, randomRows(5, 60))
	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.CheckIntegrity(context.Background()))
}

func TestCheckIntegrity_DetectsViolations(t *testing.T) {
	path, _ := buildStore(t, fixtureRows())

	// Corrupt the store through a connection without foreign key enforcement.
	db, err := database.OpenSQLite(context.Background(), path, database.SQLiteOptions{})
	require.NoError(t, err)
	_, err = db.Exec("UPDATE exams SET thal = 99 WHERE exam_id = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	err = r.CheckIntegrity(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuery))
	assert.Contains(t, err.Error(), "lookup_thal")
}

func TestBuild_IdempotentRebuild(t *testing.T) {
	rows := randomRows(11, 80)
	path := filepath.Join(t.TempDir(), "heart.db")
	builder := NewBuilder(testLogger())
	ctx := context.Background()

	first, err := builder.Build(ctx, rows, path)
	require.NoError(t, err)
	r1, err := Open(ctx, path)
	require.NoError(t, err)
	counts1, err := r1.Counts(ctx)
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	second, err := builder.Build(ctx, rows, path)
	require.NoError(t, err)
	r2, err := Open(ctx, path)
	require.NoError(t, err)
	counts2, err := r2.Counts(ctx)
	require.NoError(t, err)
	require.NoError(t, r2.Close())

	assert.Equal(t, counts1, counts2)
	assert.Equal(t, first.Lookups, second.Lookups)
	assert.Equal(t, 80, counts2[TableExams])
}

func TestBuild_ReplacesExistingStore(t *testing.T) {
	path, _ := buildStore(t, randomRows(1, 50))

	_, err := NewBuilder(testLogger()).Build(context.Background(), fixtureRows(), path)
	require.NoError(t, err)

	got, err := Reconstruct(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, fixtureRows(), got)
}

func TestBuild_FailureKeepsPreviousStore(t *testing.T) {
	path, _ := buildStore(t, fixtureRows())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(testLogger()).Build(ctx, randomRows(2, 30), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchema))

	got, err := Reconstruct(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, fixtureRows(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary store should be removed")
}

func TestBuildFromCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "heart.csv")
	content := "age,sex,cp,trestbps,chol,fbs,restecg,thalach,exang,oldpeak,slope,ca,thal,target\n" +
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1,1\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	report, err := NewBuilder(testLogger()).BuildFromCSV(context.Background(), csvPath, filepath.Join(dir, "out", "heart.db"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exams)

	_, err = NewBuilder(testLogger()).BuildFromCSV(context.Background(), filepath.Join(dir, "missing.csv"), filepath.Join(dir, "x.db"))
	assert.True(t, errors.Is(err, domain.ErrSchema))
}

func TestReconstruct_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := Reconstruct(ctx, filepath.Join(dir, "missing.db"))
		assert.True(t, errors.Is(err, domain.ErrQuery))
	})

	t.Run("missing tables", func(t *testing.T) {
		path := filepath.Join(dir, "partial.db")
		db, err := database.OpenSQLite(ctx, path, database.SQLiteOptions{})
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE patients (patient_id INTEGER PRIMARY KEY, age INTEGER, sex INTEGER)")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = Reconstruct(ctx, path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrQuery))
		assert.Contains(t, err.Error(), "exams")
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.db")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a sqlite database\n", 200)), 0o644))

		_, err := Reconstruct(ctx, path)
		assert.True(t, errors.Is(err, domain.ErrQuery))
	})
}
