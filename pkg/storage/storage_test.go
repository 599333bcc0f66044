package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage/local"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		raw  string
		want storage.URL
	}{
		{"./data", storage.URL{Scheme: "file", Path: "./data"}},
		{"/var/jobs", storage.URL{Scheme: "file", Path: "/var/jobs"}},
		{"file:///var/jobs", storage.URL{Scheme: "file", Path: "/var/jobs"}},
		{"s3://bucket/jobs/prod", storage.URL{Scheme: "s3", Bucket: "bucket", Path: "jobs/prod"}},
		{"s3://bucket", storage.URL{Scheme: "s3", Bucket: "bucket"}},
		{"gcs://bucket/jobs", storage.URL{Scheme: "gcs", Bucket: "bucket", Path: "jobs"}},
		{"gs://bucket/jobs", storage.URL{Scheme: "gcs", Bucket: "bucket", Path: "jobs"}},
	}
	for _, tc := range cases {
		got, err := storage.ParseURL(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, *got, tc.raw)
	}
}

func TestParseURLRejectsEmpty(t *testing.T) {
	_, err := storage.ParseURL("")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := storage.Open(context.Background(), "ftp://host/path")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
	assert.Contains(t, err.Error(), "ftp")
}

func TestLocalBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	payload := map[string]interface{}{"schema_version": "2.0", "value": 42.0}
	require.NoError(t, backend.WriteJSON(ctx, "job1/results.json", payload))

	var decoded map[string]interface{}
	require.NoError(t, backend.ReadJSON(ctx, "job1/results.json", &decoded))
	assert.Equal(t, "2.0", decoded["schema_version"])

	require.NoError(t, backend.WriteYAML(ctx, "job1/config.yaml", payload))
	var yamlBack map[string]interface{}
	require.NoError(t, backend.ReadYAML(ctx, "job1/config.yaml", &yamlBack))
	assert.Equal(t, "2.0", yamlBack["schema_version"])

	tbl := table.New()
	require.NoError(t, tbl.AddColumn("product_id", []interface{}{"P1", "P2"}))
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{10.0, 20.0}))
	require.NoError(t, backend.WriteParquet(ctx, "job1/metrics.parquet", tbl))

	back, err := backend.ReadParquet(ctx, "job1/metrics.parquet")
	require.NoError(t, err)
	assert.Equal(t, 2, back.NumRows())
	assert.ElementsMatch(t, []string{"product_id", "revenue"}, back.Columns())

	exists, err := backend.Exists(ctx, "job1/metrics.parquet")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = backend.Exists(ctx, "job1/missing.parquet")
	require.NoError(t, err)
	assert.False(t, exists)

	keys, err := backend.List(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, []string{"job1/config.yaml", "job1/metrics.parquet", "job1/results.json"}, keys)
}

func TestLocalReadMissing(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	var out map[string]interface{}
	err = backend.ReadJSON(context.Background(), "nope.json", &out)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestJobStoreScoping(t *testing.T) {
	ctx := context.Background()
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	jobA := storage.NewJobStore(backend, "job-a")
	jobB := storage.NewJobStore(backend, "job-b")

	require.NoError(t, jobA.WriteJSON(ctx, "results.json", map[string]interface{}{"job": "a"}))

	exists, err := jobB.Exists(ctx, "results.json")
	require.NoError(t, err)
	assert.False(t, exists)

	var out map[string]interface{}
	require.NoError(t, jobA.ReadJSON(ctx, "results.json", &out))
	assert.Equal(t, "a", out["job"])
}

func TestJobStoreGeneratesID(t *testing.T) {
	backend, err := local.New(t.TempDir())
	require.NoError(t, err)

	a := storage.NewJobStore(backend, "")
	b := storage.NewJobStore(backend, "")
	assert.NotEmpty(t, a.JobID())
	assert.NotEqual(t, a.JobID(), b.JobID())
}
