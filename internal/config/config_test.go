package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/racerl/racecore/internal/motion"
	"github.com/racerl/racecore/internal/perception"
	"github.com/racerl/racecore/internal/reward"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"storage": { "postgres": { "host": "10.0.0.1", "port": "5433" } }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("storage.postgres.host"))
	assert.Equal(t, "5433", viper.GetString("storage.postgres.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "manual", viper.GetString("policy.type"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, "localhost:50051", viper.GetString("grpc.address"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "racecore", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetMotionConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, motion.DefaultConfig(), GetMotionConfig())
	assert.Equal(t, perception.DefaultConfig(), GetSensorConfig())
	assert.Equal(t, reward.DefaultConfig(), GetRewardConfig())
}

func TestGetMotionConfig_PartialOverrideKeepsDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"motion": { "maxSpeed": 20, "stoppedThreshold": 0.05 },
		"sensors": { "numRays": 9, "layerMask": 1 },
		"reward": { "wallPenalty": -5 }
	}`)))

	m := GetMotionConfig()
	assert.Equal(t, 20.0, m.MaxSpeed)
	assert.Equal(t, 0.05, m.StoppedThreshold)
	assert.Equal(t, motion.DefaultConfig().Acceleration, m.Acceleration)
	assert.Equal(t, motion.DefaultConfig().TurnSpeed, m.TurnSpeed)

	s := GetSensorConfig()
	assert.Equal(t, 9, s.NumRays)
	assert.Equal(t, uint32(1), s.LayerMask)
	assert.Equal(t, 15.0, s.MaxRayDistance)

	r := GetRewardConfig()
	assert.Equal(t, -5.0, r.WallPenalty)
	assert.Equal(t, 0.1, r.CheckpointReward)
}

func TestGetEpisodeConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"episode": { "maxTicks": 3000, "trackPath": "tracks/oval.json" }
	}`)))

	ec := GetEpisodeConfig()
	assert.Equal(t, uint64(3000), ec.MaxTicks)
	assert.Equal(t, 20*time.Millisecond, ec.FixedDeltaTime)
	assert.Equal(t, "tracks/oval.json", ec.TrackPath)
	assert.Equal(t, 0.5, ec.CarRadius)
	assert.Equal(t, 1, ec.MaxEpisodes)
}

func TestGetPolicyConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"policy": { "type": "learned", "modelPath": "models/driver.json" }
	}`)))

	pc := GetPolicyConfig()
	assert.Equal(t, "learned", pc.Type)
	assert.Equal(t, "models/driver.json", pc.ModelPath)
	assert.Equal(t, "driver", pc.ModelID)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, 10000, cfg.Buffer)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "racecore", cfg.Postgres.Database)
	assert.Equal(t, "episodes", cfg.Influx.Bucket)
	assert.Equal(t, "ws://localhost:5000/api/v1/stream", cfg.Websocket.URL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "./recordings/racecore.db", sc.SQLite.DumpPath)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "racecore", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
	assert.Equal(t, 10*time.Second, cfg.MetricInterval)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false,
			"metrics": true
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
	assert.Equal(t, true, oc.Metrics)
}

func TestGetServerAndGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"grpc": { "address": ":6000" },
		"graylog": { "enabled": true }
	}`)))

	assert.Equal(t, ":6000", GetServerConfig().Address)
	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"api": { "serverUrl": "http://records.local", "apiKey": "k" }
	}`)))

	ac := GetAPIConfig()
	assert.Equal(t, "http://records.local", ac.ServerURL)
	assert.Equal(t, "k", ac.APIKey)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "monitor": { "interval": "250ms" } }`)))

	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, 250*time.Millisecond, mc.Interval)
}
