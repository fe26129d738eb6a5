package config

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements Provider backed by a SQLite database. The
// document is stored as dotted key/value rows, which keeps the schema
// stable as settings are added.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// NewSQLiteProvider opens (creating if needed) a SQLite configuration
// database.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteProvider{db: db, dbPath: dbPath}, nil
}

// LoadConfig loads the complete configuration from the database.
func (s *SQLiteProvider) LoadConfig() (*Data, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config rows: %w", err)
	}
	if len(kv) == 0 {
		return nil, fmt.Errorf("no configuration stored in %s", s.dbPath)
	}

	data, err := dataFromKV(kv)
	if err != nil {
		return nil, err
	}
	data.applyDefaults()
	if err := data.Validate(true); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return data, nil
}

// SaveConfig replaces the stored configuration with data.
func (s *SQLiteProvider) SaveConfig(data *Data) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM config`); err != nil {
		return fmt.Errorf("failed to clear config: %w", err)
	}
	for k, v := range kvFromData(data) {
		if _, err := tx.Exec(`INSERT INTO config (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to store %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// IsReadOnly reports that the SQLite backend accepts writes.
func (s *SQLiteProvider) IsReadOnly() bool { return false }

// Close closes the underlying database.
func (s *SQLiteProvider) Close() error { return s.db.Close() }

func kvFromData(d *Data) map[string]string {
	kv := map[string]string{
		"location.latitude":  strconv.FormatFloat(d.Location.Latitude, 'f', -1, 64),
		"location.longitude": strconv.FormatFloat(d.Location.Longitude, 'f', -1, 64),
		"location.timezone":  d.Location.Timezone,
		"mode":               d.Mode,

		"wallpapers.night":     d.Wallpapers.Night,
		"wallpapers.morning":   d.Wallpapers.Morning,
		"wallpapers.afternoon": d.Wallpapers.Afternoon,

		"settings.check_interval_fallback": strconv.Itoa(d.Settings.CheckIntervalFallback),
		"settings.monitor":                 d.Settings.Monitor,
		"settings.status_listen":           d.Settings.StatusListen,

		"settings.transitions.enabled":           strconv.FormatBool(d.Settings.Transitions.Enabled),
		"settings.transitions.granularity":       strconv.Itoa(d.Settings.Transitions.Granularity),
		"settings.transitions.cache_dir":         d.Settings.Transitions.CacheDir,
		"settings.transitions.max_cache_size_mb": strconv.FormatInt(d.Settings.Transitions.MaxCacheSizeMB, 10),
	}
	if d.Settings.PreloadAll != nil {
		kv["settings.preload_all"] = strconv.FormatBool(*d.Settings.PreloadAll)
	}
	if d.Settings.Transitions.CacheBlends != nil {
		kv["settings.transitions.cache_blends"] = strconv.FormatBool(*d.Settings.Transitions.CacheBlends)
	}
	if g := d.Generated; g != nil {
		kv["generated.logo"] = g.Logo
		kv["generated.logo_scale"] = strconv.FormatFloat(g.LogoScale, 'f', -1, 64)
		kv["generated.logo_position"] = g.LogoPosition
		kv["generated.background_colors.night"] = g.BackgroundColors.Night
		kv["generated.background_colors.morning"] = g.BackgroundColors.Morning
		kv["generated.background_colors.afternoon"] = g.BackgroundColors.Afternoon
		kv["generated.logo_colors.night"] = g.LogoColors.Night
		kv["generated.logo_colors.morning"] = g.LogoColors.Morning
		kv["generated.logo_colors.afternoon"] = g.LogoColors.Afternoon
	}
	return kv
}

func dataFromKV(kv map[string]string) (*Data, error) {
	var d Data
	var err error

	get := func(key string) string { return kv[key] }
	getFloat := func(key string) float64 {
		if err != nil {
			return 0
		}
		v, perr := strconv.ParseFloat(kv[key], 64)
		if perr != nil {
			err = fmt.Errorf("invalid value for %s: %q", key, kv[key])
		}
		return v
	}
	getInt := func(key string, def int) int {
		if err != nil || kv[key] == "" {
			return def
		}
		v, perr := strconv.Atoi(kv[key])
		if perr != nil {
			err = fmt.Errorf("invalid value for %s: %q", key, kv[key])
		}
		return v
	}
	getBool := func(key string) *bool {
		if err != nil || kv[key] == "" {
			return nil
		}
		v, perr := strconv.ParseBool(kv[key])
		if perr != nil {
			err = fmt.Errorf("invalid value for %s: %q", key, kv[key])
		}
		return &v
	}

	d.Location = Location{
		Latitude:  getFloat("location.latitude"),
		Longitude: getFloat("location.longitude"),
		Timezone:  get("location.timezone"),
	}
	d.Mode = get("mode")
	d.Wallpapers = Wallpapers{
		Night:     get("wallpapers.night"),
		Morning:   get("wallpapers.morning"),
		Afternoon: get("wallpapers.afternoon"),
	}
	enabled := getBool("settings.transitions.enabled")
	d.Settings = Settings{
		CheckIntervalFallback: getInt("settings.check_interval_fallback", 0),
		PreloadAll:            getBool("settings.preload_all"),
		Monitor:               get("settings.monitor"),
		StatusListen:          get("settings.status_listen"),
		Transitions: Transitions{
			Enabled:        enabled != nil && *enabled,
			Granularity:    getInt("settings.transitions.granularity", 0),
			CacheBlends:    getBool("settings.transitions.cache_blends"),
			CacheDir:       get("settings.transitions.cache_dir"),
			MaxCacheSizeMB: int64(getInt("settings.transitions.max_cache_size_mb", 0)),
		},
	}
	if kv["generated.logo"] != "" {
		scale, _ := strconv.ParseFloat(kv["generated.logo_scale"], 64)
		d.Generated = &Generated{
			Logo:         get("generated.logo"),
			LogoScale:    scale,
			LogoPosition: get("generated.logo_position"),
			BackgroundColors: PeriodColors{
				Night:     get("generated.background_colors.night"),
				Morning:   get("generated.background_colors.morning"),
				Afternoon: get("generated.background_colors.afternoon"),
			},
			LogoColors: PeriodColors{
				Night:     get("generated.logo_colors.night"),
				Morning:   get("generated.logo_colors.morning"),
				Afternoon: get("generated.logo_colors.afternoon"),
			},
		}
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
