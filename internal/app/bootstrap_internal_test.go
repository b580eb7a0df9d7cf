package app

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gunvolt24/resto_sync/config"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/stretchr/testify/require"
)

func TestOpenDurable_WorkerCannotStarvePendingOperations(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		Storage: config.Storage{Dir: filepath.Join(root, "data"), QuotaBytes: 1024},
		Worker:  config.Worker{StorageDir: filepath.Join(root, "worker"), StorageQuotaBytes: 1024},
	}
	durable, workerStorage, err := openDurable(cfg)
	require.NoError(t, err)

	// воркер забивает свою квоту целиком
	page := strings.Repeat("p", 400)
	require.NoError(t, workerStorage.SetItem("sw:static-v2:http://resto.local/a.png", page))
	require.NoError(t, workerStorage.SetItem("sw:static-v2:http://resto.local/b.png", page))
	require.ErrorIs(t, workerStorage.SetItem("sw:static-v2:http://resto.local/c.png", page), apperr.ErrStorageFull)

	// очередь синхронизации по-прежнему сохраняется
	pending := `[{"id":"op-1","type":"create"}]`
	require.NoError(t, durable.SetItem("pending_sync_operations", pending))
	v, ok, err := durable.GetItem("pending_sync_operations")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pending, v)
	require.EqualValues(t, len(pending), durable.Used())
}

func TestOpenDurable_RejectsSharedDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.Storage{Dir: dir},
		Worker:  config.Worker{StorageDir: dir + "/"},
	}
	_, _, err := openDurable(cfg)
	require.Error(t, err)
}
