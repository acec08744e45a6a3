package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	sqliteDb = "sqlite"
	badgerDb = "badger"
)

type Config struct {
	Datadir  string `mapstructure:"DATADIR" envDefault:"taskpayd" envInfo:"Data directory for taskpayd state"`
	DbType   string `mapstructure:"DB_TYPE" envDefault:"sqlite" envInfo:"Database backend: sqlite | badger"`
	HTTPPort uint32 `mapstructure:"HTTP_PORT" envDefault:"7100" envInfo:"HTTP server port"`
	LogLevel uint32 `mapstructure:"LOG_LEVEL" envDefault:"4" envInfo:"Log verbosity (higher = more verbose)"`

	LedgerRPCURL   string `mapstructure:"LEDGER_RPC_URL" envDefault:"" envInfo:"Escrow ledger RPC endpoint (e.g., http://geth:8545)"`
	EscrowContract string `mapstructure:"ESCROW_CONTRACT" envDefault:"" envInfo:"Escrow contract address"`
	LedgerTimeout  uint32 `mapstructure:"LEDGER_TIMEOUT" envDefault:"15" envInfo:"Ledger read timeout in seconds"`

	AdminPrivateKey string `mapstructure:"ADMIN_PRIVATE_KEY" envDefault:"" envInfo:"Hex-encoded administrative signer key"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("TASKPAY")
	v.AutomaticEnv()

	if err := setDefaultConfig(v); err != nil {
		return nil, fmt.Errorf("error setting default config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}

	if err := config.initDb(); err != nil {
		return nil, fmt.Errorf("error initializing data directory: %w", err)
	}

	if err := config.validateLedger(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) initDb() error {
	supportedDbType := map[string]struct{}{
		sqliteDb: {},
		badgerDb: {},
	}

	if _, ok := supportedDbType[c.DbType]; !ok {
		return fmt.Errorf("unsupported db type: %s", c.DbType)
	}

	if c.Datadir == "taskpayd" {
		c.Datadir = appDatadir("taskpayd", false)
	}
	return makeDirectoryIfNotExists(c.Datadir)
}

func (c *Config) validateLedger() error {
	if c.LedgerRPCURL == "" {
		return fmt.Errorf("missing TASKPAY_LEDGER_RPC_URL")
	}
	if !common.IsHexAddress(c.EscrowContract) {
		return fmt.Errorf("invalid escrow contract address %q", c.EscrowContract)
	}
	if c.AdminPrivateKey == "" {
		return fmt.Errorf("missing TASKPAY_ADMIN_PRIVATE_KEY")
	}
	return nil
}

func (c *Config) EscrowContractAddress() common.Address {
	return common.HexToAddress(c.EscrowContract)
}

func setDefaultConfig(v *viper.Viper) error {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("mapstructure")
		def := f.Tag.Get("envDefault")
		if def != "" {
			v.SetDefault(key, def)
		}
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("error binding env variable for key %s: %w", key, err)
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// appDatadir returns an operating system specific directory to be used for
// storing application data.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}
	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}
	case "plan9":
		if homeDir != "" {
			return filepath.Join(homeDir, appNameLower)
		}
	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	return "."
}
