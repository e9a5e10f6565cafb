package artimel

import (
	"github.com/spf13/viper"
)

// LoadConfig loads viper settings from the artimelrc file (current
// directory or $HOME/.artimel) and the ARTIMEL_* environment, on top of
// the built-in defaults. Both CLIs call this before reading any setting.
func LoadConfig() {
	viper.SetConfigName("artimelrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.artimel")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("artimel")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"language":         "de",
		"data_size":        50000,       // rows per output shard
		"min_free_space":   25 << 30,    // abort below 25 GiB free
		"checkpoint_every": 10,          // persist quota state every 10 shards
		"batch_size":       8,
		"learning_rate":    1e-4,
		"epochs":           10,
		"validate_every":   1,
		"save_every":       8,
		"optimizer":        "adam",
		"criterion":        "rmse",
		"model_dir":        "models",
		"debug":            false,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"language":  "lang",
		"data_size": "shard_size",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}
