// Package config loads application configuration with Viper.
//
// Values come from a YAML/JSON/TOML file, an optional .env file and
// environment variables, in increasing order of precedence. Environment
// variables are read only when they carry the application prefix; the rest
// of the name maps onto the nested key, so FILESTREAM_SOURCE_BASE_URI sets
// source.base_uri.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("filestream", &cfg, config.WithConfigFile(path))
package config
