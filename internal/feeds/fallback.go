package feeds

// FallbackDrivers is the hardcoded directory substituted when the upstream
// driver feed is unreachable or unparseable. Kept deliberately small: it
// exists so the Live screen renders something rather than an error.
func FallbackDrivers() []DriverRecord {
	return []DriverRecord{
		NewDriverRecord("18", "J Carter", "LMSC", "", "454.000"),
		NewDriverRecord("5", "M Reyes", "PLM", "", "460.500"),
		NewDriverRecord("88", "T Nakamura", "LMSC", "", "451.250"),
	}
}

// FallbackEvents is the event list substituted on feed failure: empty, so
// nothing is reported live on stale data.
func FallbackEvents() []EventRecord {
	return []EventRecord{}
}
