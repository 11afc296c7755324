package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkalytics/internal/config"
	"alkalytics/pkg/contracts/domain"
)

type driverFactory struct {
	name string
	open func(t *testing.T) Database
}

func drivers() []driverFactory {
	return []driverFactory{
		{
			name: "memory",
			open: func(t *testing.T) Database { return NewMemory() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Database {
				db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "docs.db"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = db.Close() })
				return db
			},
		},
	}
}

func forEachDriver(t *testing.T, fn func(t *testing.T, db Database)) {
	for _, d := range drivers() {
		t.Run(d.name, func(t *testing.T) {
			fn(t, d.open(t))
		})
	}
}

func seedExperiments(t *testing.T, c Collection) {
	t.Helper()
	_, err := c.InsertMany(context.Background(), []*domain.Record{
		domain.NewRecord("experimentId", "#1 2024-05-01", "Date", "2024-05-01", "# of Stacks", 2),
		domain.NewRecord("experimentId", "#2 2024-05-01", "Date", "2024-05-01", "# of Stacks", 3),
		domain.NewRecord("experimentId", "#3 2024-05-02", "Date", "2024-05-02"),
	})
	require.NoError(t, err)
}

func TestInsertAndFind(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		c := db.Collection("experiments")
		seedExperiments(t, c)

		docs, err := c.Find(ctx, Where(Eq("Date", "2024-05-01")))
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "#1 2024-05-01", docs[0].Text("experimentId"))
		assert.Equal(t, "#2 2024-05-01", docs[1].Text("experimentId"))
		assert.Equal(t, domain.FieldDocID, docs[0].Keys()[0])

		one, err := c.FindOne(ctx, Where(Eq("experimentId", "#3 2024-05-02")))
		require.NoError(t, err)
		assert.Equal(t, "2024-05-02", one.Text("Date"))

		_, err = c.FindOne(ctx, Where(Eq("experimentId", "#9 2024-05-09")))
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestInsertManyIsAtomic(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		c := db.Collection("efficiencies")

		_, err := c.InsertOne(ctx, domain.NewRecord("_id", "a"))
		require.NoError(t, err)

		_, err = c.InsertMany(ctx, []*domain.Record{
			domain.NewRecord("_id", "b"),
			domain.NewRecord("_id", "a"),
		})
		assert.True(t, errors.Is(err, ErrDuplicateKey))

		n, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestFindOptions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		c := db.Collection("data")
		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		var docs []*domain.Record
		for _, minute := range []int{10, 0, 5, 15} {
			docs = append(docs, domain.NewRecord(
				"experimentId", "#1 2024-05-01",
				"Time", base.Add(time.Duration(minute)*time.Minute),
				"C1 Cond", float64(minute),
			))
		}
		_, err := c.InsertMany(ctx, docs)
		require.NoError(t, err)

		got, err := c.Find(ctx,
			Where(Eq("experimentId", "#1 2024-05-01"), Lte("Time", base.Add(10*time.Minute))),
			WithSort(Asc("Time")),
			WithProjection("Time", "C1 Cond"),
		)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, want := range []float64{0, 5, 10} {
			v, ok := got[i].Value("C1 Cond").Float()
			require.True(t, ok)
			assert.Equal(t, want, v)
			assert.Equal(t, []string{"Time", "C1 Cond"}, got[i].Keys())
		}

		last, err := c.FindOne(ctx, nil, WithSort(Desc("Time")))
		require.NoError(t, err)
		at, _ := last.Value("Time").TimeValue()
		assert.True(t, at.Equal(base.Add(15*time.Minute)))

		limited, err := c.Find(ctx, nil, WithSort(Asc("C1 Cond")), WithLimit(2))
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestUpdateAndUpsert(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		c := db.Collection("efficiencies")

		res, err := c.UpdateOne(ctx,
			Where(Eq("_id", "#1 2024-05-01 5")),
			Update{Set: domain.NewRecord("experimentId", "#1 2024-05-01", "Reaction Efficiency", 91.2)},
			WithUpsert(),
		)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Matched)
		assert.Equal(t, "#1 2024-05-01 5", res.UpsertedID)

		res, err = c.UpdateOne(ctx,
			Where(Eq("_id", "#1 2024-05-01 5")),
			Update{Set: domain.NewRecord("Voltage Drop Efficiency", 40.0)},
			WithUpsert(),
		)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Matched)
		assert.Equal(t, 1, res.Modified)
		assert.Empty(t, res.UpsertedID)

		doc, err := c.FindOne(ctx, Where(Eq("_id", "#1 2024-05-01 5")))
		require.NoError(t, err)
		assert.Equal(t, []string{"_id", "experimentId", "Reaction Efficiency", "Voltage Drop Efficiency"}, doc.Keys())

		res, err = c.UpdateOne(ctx,
			Where(Eq("_id", "#1 2024-05-01 5")),
			Update{Set: domain.NewRecord("Voltage Drop Efficiency", 40.0), Unset: []string{"Reaction Efficiency"}},
		)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Modified)

		doc, err = c.FindOne(ctx, Where(Eq("_id", "#1 2024-05-01 5")))
		require.NoError(t, err)
		assert.False(t, doc.Has("Reaction Efficiency"))
	})
}

func TestUpdateManyDeleteDistinct(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		c := db.Collection("experiments")
		seedExperiments(t, c)

		res, err := c.UpdateMany(ctx, Where(Eq("Date", "2024-05-01")), Update{Set: domain.NewRecord("reviewed", "yes")})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Modified)

		dates, err := c.Distinct(ctx, "Date", nil)
		require.NoError(t, err)
		require.Len(t, dates, 2)
		assert.Equal(t, "2024-05-01", dates[0].String())

		n, err := c.Count(ctx, Where(Exists("# of Stacks", false)))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		removed, err := c.DeleteOne(ctx, Where(Eq("Date", "2024-05-01")))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		removed, err = c.DeleteMany(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
	})
}

func TestCollectionsAreIsolated(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db Database) {
		ctx := context.Background()
		_, err := db.Collection("a").InsertOne(ctx, domain.NewRecord("_id", "x"))
		require.NoError(t, err)
		_, err = db.Collection("b").InsertOne(ctx, domain.NewRecord("_id", "x"))
		require.NoError(t, err)

		n, err := db.Collection("b").Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, db.Ping(ctx))
	})
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docs.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	seedExperiments(t, db.Collection("experiments"))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Collection("experiments").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryClosed(t *testing.T) {
	db := NewMemory()
	require.NoError(t, db.Close())

	_, err := db.Collection("a").Find(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Ping(context.Background()), ErrClosed)
}

func TestOpen(t *testing.T) {
	db, err := Open(context.Background(), config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDatabase{}, db)

	_, err = Open(context.Background(), config.StoreConfig{Driver: "cassandra"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLDatabase{dialect: postgresDialect}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &SQLDatabase{dialect: sqliteDialect}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
