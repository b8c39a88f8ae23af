// mp4conv/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin            string        `mapstructure:"FF_BIN"`
	FFTimeout        time.Duration `mapstructure:"FF_TIMEOUT"`
	OutputDirName    string        `mapstructure:"OUTPUT_DIR_NAME"`
	VideoCodec       string        `mapstructure:"VIDEO_CODEC"`
	AudioCodec       string        `mapstructure:"AUDIO_CODEC"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFile          string        `mapstructure:"LOG_FILE"`
	LogFileMaxSize   int64         `mapstructure:"LOG_FILE_MAX_SIZE"`
	LogBufferLines   int           `mapstructure:"LOG_BUFFER_LINES"`
	AuthEnable       bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey          string        `mapstructure:"AUTH_KEY"`
	Port             string        `mapstructure:"PORT"`

	vp *viper.Viper
}

// stringToDurationHookFunc parses Go duration strings such as "90m".
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable sizes ("500MB") into bytes.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string, let the default decoder try.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func newViper() *viper.Viper {
	vp := viper.New()

	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FF_TIMEOUT", "0s")
	vp.SetDefault("OUTPUT_DIR_NAME", "converted_mp4")
	vp.SetDefault("VIDEO_CODEC", "libx264")
	vp.SetDefault("AUDIO_CODEC", "aac")
	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", "0B")
	vp.SetDefault("THROTTLE_FREEDISK", "500MB")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FILE", "")
	vp.SetDefault("LOG_FILE_MAX_SIZE", "10MB")
	vp.SetDefault("LOG_BUFFER_LINES", 500)
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")

	vp.SetConfigName("mp4conv_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/mp4conv/")

	vp.SetEnvPrefix("MP4CONV")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	return vp
}

func decode(vp *viper.Viper) (*Config, error) {
	var cfg Config
	// The order matters: the duration hook must see time.Duration fields first.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}
	cfg.vp = vp
	return &cfg, nil
}

// LoadFile reads defaults, the config file, then MP4CONV_* environment
// variables, in increasing order of precedence. An empty path searches for
// an optional mp4conv_config.yaml; an explicit path must exist.
func LoadFile(path string) (*Config, error) {
	vp := newViper()
	if path != "" {
		vp.SetConfigFile(path)
	}

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return decode(vp)
}

// OnChange re-decodes the configuration whenever the backing config file
// changes and passes the fresh value to fn. It is a no-op when no file was
// loaded.
func (c *Config) OnChange(fn func(*Config, error)) {
	if c.vp == nil || c.vp.ConfigFileUsed() == "" {
		return
	}
	vp := c.vp
	vp.OnConfigChange(func(in fsnotify.Event) {
		if !in.Has(fsnotify.Write) && !in.Has(fsnotify.Create) {
			return
		}
		fn(decode(vp))
	})
	vp.WatchConfig()
}
