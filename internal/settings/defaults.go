package settings

import (
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
)

// DefaultCreditRates is the rate table used when credit_rates is missing.
func DefaultCreditRates(cfg *config.Config) CreditRates {
	return CreditRates{
		IStock: RatePair{Photo: cfg.DefaultIStockPhotoRate, Video: cfg.DefaultIStockVideoRate},
		Adobe:  RatePair{Photo: cfg.DefaultAdobePhotoRate, Video: cfg.DefaultAdobeVideoRate},
	}
}

// DefaultProcessing is the pipeline config used when processing is missing.
func DefaultProcessing(cfg *config.Config) Processing {
	return Processing{
		ImageConcurrency: cfg.DefaultImageConcurrency,
		VideoConcurrency: cfg.DefaultVideoConcurrency,
		CacheThreshold:   cfg.DefaultCacheThreshold,
	}
}

// DefaultBankInfo is the receiving account from the environment.
func DefaultBankInfo(cfg *config.Config) BankInfo {
	return BankInfo{
		BankName:      cfg.BankName,
		AccountName:   cfg.BankAccountName,
		AccountNumber: cfg.BankAccountNumber,
	}
}

// Defaults returns the documents seeded on first start. Prompts, the
// dictionary and the blacklist start empty and are filled in by admins
// or the seed file.
func Defaults(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		KeyCreditRates:  DefaultCreditRates(cfg),
		KeyExchangeRate: ExchangeRate{Rate: cfg.DefaultExchangeRate},
		KeyProcessing:   DefaultProcessing(cfg),
		KeyBankInfo:     DefaultBankInfo(cfg),
		KeyPrompts:      Prompts{},
		KeyDictionary:   WordList{Words: []string{}},
		KeyBlacklist:    WordList{Words: []string{}},
	}
}
