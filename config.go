package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/donutnomad/shapegen/shape"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config 命令行配置
// 优先级：命令行参数 > SHAPEGEN_* 环境变量 > shapegen.yaml > 默认值
//
//	# shapegen.yaml
//	output: $FILE_shape
//	naming: snake
//	namespace: shape
//	debounce: 500ms
type Config struct {
	Output    string        `mapstructure:"output"`
	Naming    string        `mapstructure:"naming"`
	Namespace string        `mapstructure:"namespace"`
	Async     bool          `mapstructure:"async"`
	Verbose   bool          `mapstructure:"verbose"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

// configKeys 可以由命令行参数覆盖的配置项
var configKeys = []string{"output", "naming", "namespace", "async", "verbose", "debounce"}

// LoadConfig 加载配置，path 为空时在当前目录查找 shapegen.yaml，找不到时使用默认值
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("async", true)
	v.SetDefault("debounce", 500*time.Millisecond)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shapegen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SHAPEGEN")
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range configKeys {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := shape.ParseNaming(c.Naming); err != nil {
		return err
	}
	if c.Namespace != "" {
		if _, err := shape.NewExpander(nil, c.Namespace); err != nil {
			return err
		}
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce 必须大于 0，得到 %v", c.Debounce)
	}
	return nil
}

// Options 传递给生成器的全局选项
func (c *Config) Options() map[string]string {
	opts := make(map[string]string)
	if c.Naming != "" {
		opts["naming"] = c.Naming
	}
	if c.Namespace != "" {
		opts["namespace"] = c.Namespace
	}
	return opts
}
