package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type MinioConfig struct {
	EndPoint  string `mapstructure:"end_point"`
	Port      int    `mapstructure:"port"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	AccessURL string `mapstructure:"access_url"`
}

type ServerInfoConfig struct {
	Title        string   `mapstructure:"title"`
	Descriptions []string `mapstructure:"descriptions"`
	TermsOfUse   string   `mapstructure:"terms_of_use"`
}

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// SecretCollectionSuffix keeps the system collections (rooms, sockets,
	// tokens) unguessable by clients that know the naming scheme.
	SecretCollectionSuffix string `mapstructure:"secret_collection_suffix"`

	RoomNum            int           `mapstructure:"room_num"`
	RoomAutoRemove     time.Duration `mapstructure:"room_auto_remove"`
	RoomCreatePassword string        `mapstructure:"room_create_password"`

	StoreType    string `mapstructure:"store_type"` // "memory" or "mongodb"
	MongoURI     string `mapstructure:"mongo_uri"`
	DBNameSuffix string `mapstructure:"db_name_suffix"`

	TokenSecret  string        `mapstructure:"token_secret"`
	TokenExpires time.Duration `mapstructure:"token_expires"`

	InteroperabilityPath string `mapstructure:"interoperability_path"`
	ServerVersion        string `mapstructure:"server_version"`

	// ServerInfo is shown on the client's room list screen as-is.
	ServerInfo ServerInfoConfig `mapstructure:"server_info"`

	Minio MinioConfig `mapstructure:"minio"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret_collection_suffix", "0000000000")
	v.SetDefault("room_num", 30)
	v.SetDefault("room_auto_remove", "5m")
	v.SetDefault("store_type", "memory")
	v.SetDefault("db_name_suffix", "dev")
	v.SetDefault("token_expires", "60m")
	v.SetDefault("server_version", "Quoridorn 1.0.0")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
