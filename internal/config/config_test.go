package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SIM_STEP_INTERVAL", "50ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.DatabaseURL)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 50*time.Millisecond, cfg.SimStepInterval)
	require.Equal(t, 50, cfg.OutboxBatch)
	require.Equal(t, "dispatch.events", cfg.NATSSubject)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	_, err = LoadWorker()
	require.NoError(t, err)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DISPATCH_SCHEDULE=@every 5m\n"), 0o600))
	t.Setenv("JWT_SECRET", "secret")
	os.Unsetenv("DISPATCH_SCHEDULE")
	t.Cleanup(func() { os.Unsetenv("DISPATCH_SCHEDULE") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "@every 5m", cfg.DispatchSchedule)
}

func TestLoadFleetDefault(t *testing.T) {
	specs, err := LoadFleet("")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultFleetSpecs, specs)
}

func TestLoadFleetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	body := "drones:\n  - capacity_kg: 20\n    range_km: 200\n  - capacity_kg: 5\n    range_km: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	specs, err := LoadFleet(path)
	require.NoError(t, err)
	require.Equal(t, []domain.DroneSpec{{CapacityKg: 20, RangeKm: 200}, {CapacityKg: 5, RangeKm: 50}}, specs)
}

func TestLoadFleetRejectsBadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"drones":[{"capacity_kg":0,"range_km":10}]}`), 0o600))

	_, err := LoadFleet(path)
	require.ErrorIs(t, err, domain.ErrInvalid)
}
