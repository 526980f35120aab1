package settings

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ─────────────────────────────────────────────
// Runtime-tunable business configuration.
//
// Each key holds one typed JSON document. Readers
// decode into the matching struct below.
// ─────────────────────────────────────────────

const (
	KeyCreditRates  = "credit_rates"
	KeyExchangeRate = "exchange_rate"
	KeyProcessing   = "processing"
	KeyBankInfo     = "bank_info"
	KeyPrompts      = "prompts"
	KeyDictionary   = "dictionary"
	KeyBlacklist    = "blacklist"
)

var ErrNotFound = errors.New("setting not found")

// Setting is one row of the app_settings table.
type Setting struct {
	Key       string         `json:"key" gorm:"primaryKey"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Setting) TableName() string { return "app_settings" }

// Reader is the read side consumed by the services. Get decodes the
// document under key into dst and returns ErrNotFound if it is absent.
type Reader interface {
	Get(ctx context.Context, key string, dst interface{}) error
}

// ─────────────────────────────────────────────
// Documents
// ─────────────────────────────────────────────

// RatePair is the credit cost of one photo and one video.
type RatePair struct {
	Photo int `json:"photo" yaml:"photo"`
	Video int `json:"video" yaml:"video"`
}

// CreditRates is the per-platform rate table.
type CreditRates struct {
	IStock RatePair `json:"istock" yaml:"istock"`
	Adobe  RatePair `json:"adobe" yaml:"adobe"`
}

// ExchangeRate converts baht to credits.
type ExchangeRate struct {
	Rate decimal.Decimal `json:"rate" yaml:"rate"`
}

// Processing holds the pipeline limits handed to the client with each job.
type Processing struct {
	ImageConcurrency int `json:"image_concurrency" yaml:"image_concurrency"`
	VideoConcurrency int `json:"video_concurrency" yaml:"video_concurrency"`
	CacheThreshold   int `json:"cache_threshold" yaml:"cache_threshold"`
}

// BankInfo is the account users transfer to. Slips must name it as receiver.
type BankInfo struct {
	BankName      string `json:"bank_name" yaml:"bank_name"`
	AccountName   string `json:"account_name" yaml:"account_name"`
	AccountNumber string `json:"account_number" yaml:"account_number"`
}

// Prompts maps platform and keyword style to the generation prompt.
// Lookup order: Styles["<platform>:<style>"], Styles[style], Modes[platform], Default.
type Prompts struct {
	Default string            `json:"default" yaml:"default"`
	Modes   map[string]string `json:"modes,omitempty" yaml:"modes"`
	Styles  map[string]string `json:"styles,omitempty" yaml:"styles"`
}

// WordList backs both the dictionary and the blacklist documents.
type WordList struct {
	Words []string `json:"words" yaml:"words"`
}
