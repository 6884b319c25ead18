package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	Port       string
	TimeZone   string

	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string
	LineRateLimitRPS       int
	LineTimeoutMs          int
	EnableReplyMessage     bool

	GoogleSheetsID              string
	GoogleSheetIndex            int
	GoogleCredentialsJSON       string
	GoogleCredentialsBase64     string
	GoogleServiceAccountKeyPath string
	SheetsSyncIntervalSec       int

	DuplicateMessageWindowMin int
	DuplicateItemWindowMin    int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailMarkRead     bool

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "orders.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		Port:       getEnv("PORT", "3000"),
		TimeZone:   getEnv("TZ_NAME", "Asia/Bangkok"),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		LineRateLimitRPS:       getEnvInt("LINE_RATE_LIMIT_RPS", 10),
		LineTimeoutMs:          getEnvInt("LINE_TIMEOUT_MS", 10000),
		EnableReplyMessage:     getEnvBool("ENABLE_REPLY_MESSAGE", false),

		GoogleSheetsID:              getEnv("GOOGLE_SHEETS_ID", ""),
		GoogleSheetIndex:            getEnvInt("GOOGLE_SHEET_INDEX", 0),
		GoogleCredentialsJSON:       getEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
		GoogleCredentialsBase64:     getEnv("GOOGLE_APPLICATION_CREDENTIALS_BASE64", ""),
		GoogleServiceAccountKeyPath: getEnv("GOOGLE_SERVICE_ACCOUNT_KEY_PATH", ""),
		SheetsSyncIntervalSec:       getEnvInt("SHEETS_SYNC_INTERVAL_SEC", 0),

		DuplicateMessageWindowMin: getEnvInt("DUPLICATE_MESSAGE_WINDOW_MIN", 10),
		DuplicateItemWindowMin:    getEnvInt("DUPLICATE_ITEM_WINDOW_MIN", 30),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailMarkRead:     getEnvBool("GMAIL_MARK_READ", false),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Location falls back to a fixed +07:00 zone when tzdata is unavailable.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

func (c Config) SheetsConfigured() bool {
	if strings.TrimSpace(c.GoogleSheetsID) == "" {
		return false
	}
	return c.GoogleCredentialsJSON != "" || c.GoogleCredentialsBase64 != "" || c.GoogleServiceAccountKeyPath != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
