package config

import (
	"fmt"
	"time"

	"github.com/racerl/racecore/internal/motion"
	"github.com/racerl/racecore/internal/perception"
	"github.com/racerl/racecore/internal/reward"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "racecore.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB v2 settings.
type InfluxConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// WebsocketConfig holds the streaming backend settings.
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Buffer    int             `json:"buffer" mapstructure:"buffer"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  DBConfig        `json:"postgres" mapstructure:"postgres"`
	Influx    InfluxConfig    `json:"influx" mapstructure:"influx"`
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
}

// EpisodeConfig controls tick timing and episode length.
type EpisodeConfig struct {
	MaxTicks       uint64        `json:"maxTicks" mapstructure:"maxTicks"`
	FixedDeltaTime time.Duration `json:"fixedDeltaTime" mapstructure:"fixedDeltaTime"`
	MaxEpisodes    int           `json:"maxEpisodes" mapstructure:"maxEpisodes"`
	TrackPath      string        `json:"trackPath" mapstructure:"trackPath"`
	CarRadius      float64       `json:"carRadius" mapstructure:"carRadius"`
}

// PolicyConfig selects the action producer.
type PolicyConfig struct {
	Type      string `json:"type" mapstructure:"type"`
	ModelPath string `json:"modelPath" mapstructure:"modelPath"`
	ModelID   string `json:"modelId" mapstructure:"modelId"`
}

// ServerConfig holds the gRPC environment service settings.
type ServerConfig struct {
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
	Metrics        bool          `json:"metrics" mapstructure:"metrics"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// GraylogConfig holds the GELF output settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// APIConfig holds the recording upload service settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	m := motion.DefaultConfig()
	viper.SetDefault("motion.maxSpeed", m.MaxSpeed)
	viper.SetDefault("motion.acceleration", m.Acceleration)
	viper.SetDefault("motion.deceleration", m.Deceleration)
	viper.SetDefault("motion.turnSpeed", m.TurnSpeed)
	viper.SetDefault("motion.minSteerSpeed", m.MinSteerSpeed)
	viper.SetDefault("motion.stoppedThreshold", m.StoppedThreshold)
	viper.SetDefault("motion.throttleDeadzone", m.ThrottleDeadzone)
	viper.SetDefault("motion.minSpeedFactor", m.MinSpeedFactor)

	s := perception.DefaultConfig()
	viper.SetDefault("sensors.numRays", s.NumRays)
	viper.SetDefault("sensors.rayAngleSpread", s.RayAngleSpread)
	viper.SetDefault("sensors.maxRayDistance", s.MaxRayDistance)
	viper.SetDefault("sensors.layerMask", s.LayerMask)
	viper.SetDefault("sensors.referenceSpeed", s.ReferenceSpeed)
	viper.SetDefault("sensors.referenceYawRate", s.ReferenceYawRate)

	r := reward.DefaultConfig()
	viper.SetDefault("reward.steerPenaltyFactor", r.SteerPenaltyFactor)
	viper.SetDefault("reward.forwardRewardFactor", r.ForwardRewardFactor)
	viper.SetDefault("reward.checkpointReward", r.CheckpointReward)
	viper.SetDefault("reward.wallPenalty", r.WallPenalty)

	viper.SetDefault("episode.maxTicks", 0)
	viper.SetDefault("episode.fixedDeltaTime", "20ms")
	viper.SetDefault("episode.maxEpisodes", 1)
	viper.SetDefault("episode.trackPath", "")
	viper.SetDefault("episode.carRadius", 0.5)

	viper.SetDefault("policy.type", "manual")
	viper.SetDefault("policy.modelPath", "")
	viper.SetDefault("policy.modelId", "driver")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.buffer", 10000)
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/racecore.db")

	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "racecore")

	viper.SetDefault("storage.influx.host", "localhost")
	viper.SetDefault("storage.influx.port", "8086")
	viper.SetDefault("storage.influx.protocol", "http")
	viper.SetDefault("storage.influx.token", "supersecrettoken")
	viper.SetDefault("storage.influx.org", "racecore")
	viper.SetDefault("storage.influx.bucket", "episodes")
	viper.SetDefault("storage.influx.backupDir", "./recordings")

	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("grpc.address", "localhost:50051")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racecore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metrics", false)
	viper.SetDefault("otel.metricInterval", "10s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// unmarshal decodes one section with defaults filled in per leaf key.
// Decode errors leave zero fields; consumers validate what they receive.
func unmarshal[T any](key string) T {
	var out T
	section, _ := viper.AllSettings()[key].(map[string]any)
	sub := viper.New()
	if err := sub.MergeConfigMap(section); err != nil {
		return out
	}
	_ = sub.Unmarshal(&out)
	return out
}

// GetMotionConfig returns the motion model tuning.
func GetMotionConfig() motion.Config {
	return unmarshal[motion.Config]("motion")
}

// GetSensorConfig returns the perception settings.
func GetSensorConfig() perception.Config {
	return unmarshal[perception.Config]("sensors")
}

// GetRewardConfig returns the reward weights.
func GetRewardConfig() reward.Config {
	return unmarshal[reward.Config]("reward")
}

// GetEpisodeConfig returns the episode settings.
func GetEpisodeConfig() EpisodeConfig {
	return unmarshal[EpisodeConfig]("episode")
}

// GetPolicyConfig returns the policy selection.
func GetPolicyConfig() PolicyConfig {
	return unmarshal[PolicyConfig]("policy")
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return unmarshal[StorageConfig]("storage")
}

// GetServerConfig returns the gRPC service settings.
func GetServerConfig() ServerConfig {
	return unmarshal[ServerConfig]("grpc")
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return unmarshal[OTelConfig]("otel")
}

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	return unmarshal[GraylogConfig]("graylog")
}

// GetAPIConfig returns the upload service settings.
func GetAPIConfig() APIConfig {
	return unmarshal[APIConfig]("api")
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return unmarshal[MonitorConfig]("monitor")
}
