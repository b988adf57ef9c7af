package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，GACHA_HTTP_PORT 覆盖 http.port
const EnvPrefix = "GACHA"

var configPath string

// LoadConfig 加载配置文件到 target 并按 validate tag 校验
// 优先级：环境变量 > 配置文件 > WithDefaults 默认值
// 配置文件路径：--config 参数 > GACHA_CONFIG > 可执行文件目录下的 config.yaml
func LoadConfig(target any, opts ...config.Option) error {
	execDir, err := GetExecDir()
	if err != nil {
		return fmt.Errorf("failed to get executable directory: %w", err)
	}

	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", filepath.Join(execDir, "config.yaml"), "path to config file")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	path := configPath
	if !pflag.CommandLine.Changed("config") {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path = env
		}
	}
	return LoadConfigFile(path, target, opts...)
}

// LoadConfigFile 从指定路径加载配置，测试和工具可以直接使用
func LoadConfigFile(path string, target any, opts ...config.Option) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not found at %s: %w", path, err)
	}
	configPath = path

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	mgr := config.NewManager(append([]config.Option{config.WithViper(v)}, opts...)...)
	if err := mgr.LoadFile(path); err != nil {
		return err
	}
	if err := mgr.Unmarshal(target); err != nil {
		return err
	}
	return config.NewValidator().Validate(target)
}

// GetExecDir 获取可执行文件所在目录（处理符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}

// GetConfigPath 返回最终使用的配置文件路径，其他相对路径以它所在目录为基准
func GetConfigPath() string {
	return configPath
}
