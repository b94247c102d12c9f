package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	GameTap  = "tap"
	GameSpin = "spin"
	GameQuiz = "quiz"

	AdVideo        = "video"
	AdInterstitial = "interstitial"
	AdBanner       = "banner"
)

// gameCooldowns are per user and per game type.
var gameCooldowns = map[string]time.Duration{
	GameTap:  10 * time.Second,
	GameSpin: 60 * time.Second,
	GameQuiz: 30 * time.Second,
}

func GameCooldown(gameType string) (time.Duration, bool) {
	d, ok := gameCooldowns[gameType]
	return d, ok
}

const (
	tier1 = "tier1"
	tier2 = "tier2"
	tier3 = "tier3"
)

var countryTiers = map[string]string{
	"US": tier1, "GB": tier1, "CA": tier1, "AU": tier1, "DE": tier1,
	"CH": tier1, "NO": tier1, "SE": tier1, "DK": tier1, "NL": tier1,
	"FR": tier2, "IT": tier2, "ES": tier2, "AT": tier2, "BE": tier2,
	"IE": tier2, "JP": tier2, "KR": tier2, "NZ": tier2, "FI": tier2,
	"AE": tier2, "SG": tier2, "IL": tier2, "PL": tier2, "PT": tier2,
}

func CountryTier(country string) string {
	if t, ok := countryTiers[strings.ToUpper(country)]; ok {
		return t
	}
	return tier3
}

// CPMTable maps a country tier to the USD CPM of each ad type.
type CPMTable map[string]map[string]float64

func DefaultCPMTable() CPMTable {
	return CPMTable{
		tier1: {AdVideo: 12, AdInterstitial: 8, AdBanner: 1.5},
		tier2: {AdVideo: 8, AdInterstitial: 5, AdBanner: 1},
		tier3: {AdVideo: 3, AdInterstitial: 2, AdBanner: 0.5},
	}
}

// FlatCPMTable prices every country and ad type the same.
func FlatCPMTable(cpm float64) CPMTable {
	row := map[string]float64{AdVideo: cpm, AdInterstitial: cpm, AdBanner: cpm}
	return CPMTable{tier1: row, tier2: row, tier3: row}
}

func (t CPMTable) Lookup(country, adType string) float64 {
	row, ok := t[CountryTier(country)]
	if !ok {
		row = t[tier3]
	}
	return row[adType]
}

func adTypeFor(watchAgain bool) string {
	if watchAgain {
		return AdInterstitial
	}
	return AdVideo
}

func geoInfo(country, adType string, cpm float64) string {
	return fmt.Sprintf("%s • %s CPM $%.2f", country, adType, cpm)
}
