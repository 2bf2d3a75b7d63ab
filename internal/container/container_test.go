package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"attrition/app"
	"attrition/domain/employee"
	"attrition/internal/auth"
	"attrition/internal/config"
	"attrition/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artifact = `version: c1
intercept: 0
features:
  - name: department
    levels:
      Sales: 1
      Eng: -1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o600))

	cfg := config.Default()
	cfg.Model.Path = path
	cfg.AI.PromptsDir = ""
	return &cfg
}

func TestNewWithoutLanguageModel(t *testing.T) {
	c, err := New(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	c.Build()

	assert.Nil(t, c.LLM)
	assert.Nil(t, c.Auth)
	assert.Equal(t, app.PlannerHeuristic, c.Queries.PlannerName())
	assert.NoError(t, c.Ready(context.Background()))
}

func TestNewRejectsMissingModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Path = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewWithLanguageModelAndAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.APIKey = "sk-test"
	cfg.Auth.Secret = "secret"
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	cfg.Auth.Users = "analyst:" + hash

	c, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	c.Build()

	assert.NotNil(t, c.LLM)
	assert.NotNil(t, c.Auth)
	assert.Equal(t, app.PlannerLLM, c.Queries.PlannerName())
}

func TestInitWithDatabasePersistsBatches(t *testing.T) {
	c, err := New(testConfig(t), zerolog.Nop())
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, c.InitWithDatabase(ctx, db))
	defer c.Shutdown(ctx)
	c.Build()
	require.NotNil(t, c.BatchRepo)

	b, err := c.Batches.Ingest(ctx, app.Dataset{
		SourceName: "t.csv",
		Headers:    []string{"EmployeeID", "department"},
		Rows:       []employee.Record{{"EmployeeID": "7", "department": "Sales"}},
	})
	require.NoError(t, err)

	meta, _, records, err := c.BatchRepo.GetBatch(ctx, b.Meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", meta.ModelVersion)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].EmployeeID())
}

func TestInitWithDatabaseReportsUnreachableDatabase(t *testing.T) {
	c, err := New(testConfig(t), zerolog.Nop())
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = c.InitWithDatabase(context.Background(), db)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	assert.Nil(t, c.BatchRepo)
}
