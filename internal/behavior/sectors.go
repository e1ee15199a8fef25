package behavior

import "strings"

// SectorOther is the bucket for symbols missing from the sector map.
const SectorOther = "Other"

// SectorMap maps a bare trading symbol to its sector.
type SectorMap map[string]string

// DefaultSectors covers the large caps most often held.
func DefaultSectors() SectorMap {
	return SectorMap{
		"RELIANCE":   "Energy",
		"TCS":        "IT",
		"INFY":       "IT",
		"HDFCBANK":   "Finance",
		"ICICIBANK":  "Finance",
		"BAJFINANCE": "Finance",
		"ITC":        "FMCG",
		"TATAMOTORS": "Auto",
		"SUNPHARMA":  "Pharma",
	}
}

// Merge returns a copy of m overridden by extra.
func (m SectorMap) Merge(extra map[string]string) SectorMap {
	out := make(SectorMap, len(m)+len(extra))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range extra {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Lookup returns the sector for symbol, ignoring any exchange suffix.
func (m SectorMap) Lookup(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, "."); i > 0 {
		s = s[:i]
	}
	if sector, ok := m[s]; ok {
		return sector
	}
	return SectorOther
}
