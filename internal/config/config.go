package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Selectors holds the CSS selectors of the remote pages. They are the only
// place where the site's markup is known.
type Selectors struct {
	CaptchaFrame  string `mapstructure:"captcha_frame"`
	Background    string `mapstructure:"background"`
	Sprite        string `mapstructure:"sprite"`
	Confirm       string `mapstructure:"confirm"`
	Result        string `mapstructure:"result"`
	Reload        string `mapstructure:"reload"`
	LoginUser     string `mapstructure:"login_user"`
	LoginPassword string `mapstructure:"login_password"`
	LoginSubmit   string `mapstructure:"login_submit"`
	EarnButton    string `mapstructure:"earn_button"`
	Points        string `mapstructure:"points"`
}

type Config struct {
	User     string `mapstructure:"rainyun_user"`
	Password string `mapstructure:"rainyun_pwd"`

	BaseURL      string   `mapstructure:"base_url"`
	CookieFile   string   `mapstructure:"cookie_file"`
	SignedMarks  []string `mapstructure:"signed_marks"`
	SuccessClass string   `mapstructure:"success_class"`

	Timeout         int     `mapstructure:"timeout"`          // seconds, UI waits
	DownloadTimeout int     `mapstructure:"download_timeout"` // seconds, image downloads
	MaxRetries      int     `mapstructure:"max_retries"`
	MatchRatio      float64 `mapstructure:"match_ratio"`
	MaxDelay        int     `mapstructure:"max_delay"` // minutes of random start delay

	DetectorModel      string   `mapstructure:"detector_model"`
	DetectorConfig     string   `mapstructure:"detector_config"`
	DetectorThreshold  float64  `mapstructure:"detector_threshold"`
	DetectorInputSize  int      `mapstructure:"detector_input_size"`
	ClassifierModel    string   `mapstructure:"classifier_model"`
	ClassifierLabels   string   `mapstructure:"classifier_labels"`
	ClassifierInputW   int      `mapstructure:"classifier_input_w"`
	ClassifierInputH   int      `mapstructure:"classifier_input_h"`
	RejectLabels       []string `mapstructure:"reject_labels"`
	OverlapSuppression float64  `mapstructure:"overlap_suppression"`

	ScratchDirectory string `mapstructure:"scratch_dir"`
	LogDirectory     string `mapstructure:"log_dir"`
	DBPath           string `mapstructure:"db_path"`

	Debug     bool   `mapstructure:"debug"`
	Headless  bool   `mapstructure:"headless"`
	ChromeBin string `mapstructure:"chrome_bin"`

	APIKey             string `mapstructure:"rainyun_api_key"`
	APIBaseURL         string `mapstructure:"api_base_url"`
	AutoRenew          bool   `mapstructure:"auto_renew"`
	RenewThresholdDays int    `mapstructure:"renew_threshold_days"`
	RenewDays          int    `mapstructure:"renew_days"`
	RenewCost          int    `mapstructure:"renew_cost"`

	MonitorPort  int    `mapstructure:"monitor_port"`
	MonitorToken string `mapstructure:"monitor_token"`

	NotifyWebhook string `mapstructure:"notify_webhook"`

	Selectors Selectors `mapstructure:"selectors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rainyun_user", "")
	v.SetDefault("rainyun_pwd", "")
	v.SetDefault("base_url", "https://app.rainyun.com")
	v.SetDefault("cookie_file", "cookies.json")
	v.SetDefault("signed_marks", []string{"已领取", "已完成", "已签到", "明日再来"})
	v.SetDefault("success_class", "show-success")

	v.SetDefault("timeout", 15)
	v.SetDefault("download_timeout", 10)
	v.SetDefault("max_retries", 5)
	v.SetDefault("match_ratio", 0.8)
	v.SetDefault("max_delay", 90)

	v.SetDefault("detector_model", filepath.Join(".", "models", "detector.onnx"))
	v.SetDefault("detector_config", "")
	v.SetDefault("detector_threshold", 0.5)
	v.SetDefault("detector_input_size", 416)
	v.SetDefault("classifier_model", filepath.Join(".", "models", "classifier.onnx"))
	v.SetDefault("classifier_labels", filepath.Join(".", "models", "labels.txt"))
	v.SetDefault("classifier_input_w", 64)
	v.SetDefault("classifier_input_h", 64)
	v.SetDefault("reject_labels", []string{"0", "1"})
	v.SetDefault("overlap_suppression", 0.5)

	v.SetDefault("scratch_dir", filepath.Join(".", "temp"))
	v.SetDefault("log_dir", filepath.Join(".", "logs"))
	v.SetDefault("db_path", filepath.Join(".", "data", "checkin.db"))

	v.SetDefault("debug", false)
	v.SetDefault("headless", true)
	v.SetDefault("chrome_bin", "")

	v.SetDefault("rainyun_api_key", "")
	v.SetDefault("api_base_url", "https://api.v2.rainyun.com")
	v.SetDefault("auto_renew", true)
	v.SetDefault("renew_threshold_days", 7)
	v.SetDefault("renew_days", 7)
	v.SetDefault("renew_cost", 2258)

	v.SetDefault("monitor_port", 0)
	v.SetDefault("monitor_token", "")
	v.SetDefault("notify_webhook", "")

	v.SetDefault("selectors.captcha_frame", "#tcaptcha_iframe_dy")
	v.SetDefault("selectors.background", "#slideBg")
	v.SetDefault("selectors.sprite", "#instruction div img")
	v.SetDefault("selectors.confirm", "#tcStatus > div:nth-child(2) > div:nth-child(2) > div > div")
	v.SetDefault("selectors.result", "#tcOperation")
	v.SetDefault("selectors.reload", "#reload")
	v.SetDefault("selectors.login_user", `input[name="login-field"]`)
	v.SetDefault("selectors.login_password", `input[name="login-password"]`)
	v.SetDefault("selectors.login_submit", `//*[@id="app"]/div[1]/div[1]/div/div[2]/fade/div/div/span/form/button`)
	v.SetDefault("selectors.earn_button", `//span[contains(text(), '每日签到')]/ancestor::div[1]//a[contains(text(), '领取奖励')]`)
	v.SetDefault("selectors.points", `//*[@id="app"]/div[1]/div[3]/div[2]/div/div/div[2]/div[1]/div[1]/div/p/div/h3`)
}

// Load reads configuration from a .env file (if present), environment
// variables and an optional YAML file. Environment variables win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the solver cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("invalid config: timeout must be positive, got %d", c.Timeout)
	case c.DownloadTimeout <= 0:
		return fmt.Errorf("invalid config: download_timeout must be positive, got %d", c.DownloadTimeout)
	case c.MaxRetries < 0:
		return fmt.Errorf("invalid config: max_retries must not be negative, got %d", c.MaxRetries)
	case c.MatchRatio <= 0 || c.MatchRatio > 1:
		return fmt.Errorf("invalid config: match_ratio must be in (0, 1], got %v", c.MatchRatio)
	case c.MaxDelay < 0:
		return fmt.Errorf("invalid config: max_delay must not be negative, got %d", c.MaxDelay)
	case c.RenewThresholdDays < 0:
		return fmt.Errorf("invalid config: renew_threshold_days must not be negative, got %d", c.RenewThresholdDays)
	case c.RenewDays <= 0:
		return fmt.Errorf("invalid config: renew_days must be positive, got %d", c.RenewDays)
	}
	return nil
}

// ErrMissingCredentials means neither a login nor a saved session is
// available.
var ErrMissingCredentials = errors.New("RAINYUN_USER and RAINYUN_PWD are not set and no cookie file exists")

// CheckCredentials fails when a run could not log in: the user or password
// is empty and there is no saved session in CookieFile to fall back on.
func (c *Config) CheckCredentials() error {
	if strings.TrimSpace(c.User) != "" && c.Password != "" {
		return nil
	}
	if c.CookieFile != "" {
		if info, err := os.Stat(c.CookieFile); err == nil && !info.IsDir() && info.Size() > 0 {
			return nil
		}
	}
	return ErrMissingCredentials
}

// UIWait is the bound of every wait on the remote page.
func (c *Config) UIWait() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DownloadWait is the bound of every image download.
func (c *Config) DownloadWait() time.Duration {
	return time.Duration(c.DownloadTimeout) * time.Second
}
