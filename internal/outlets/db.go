package outlets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite outlets database used by the text-to-SQL engine.
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the sqlite database at path and ensures
// the schema and seed data exist.
func OpenDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open outlets db: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error { return d.db.Close() }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outlets (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	address       TEXT NOT NULL,
	city          TEXT NOT NULL,
	state         TEXT NOT NULL,
	postcode      TEXT,
	latitude      REAL,
	longitude     REAL,
	phone         TEXT,
	email         TEXT,
	opening_time  TEXT,
	closing_time  TEXT,
	is_24_hours   INTEGER DEFAULT 0,
	has_drive_thru INTEGER DEFAULT 0,
	has_wifi      INTEGER DEFAULT 1,
	has_parking   INTEGER DEFAULT 1,
	services      TEXT,
	created_at    TEXT DEFAULT CURRENT_TIMESTAMP
);
`

func (d *DB) migrate() error {
	if _, err := d.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM outlets`).Scan(&count); err != nil {
		return fmt.Errorf("count outlets: %w", err)
	}
	if count > 0 {
		return nil
	}
	return d.seed()
}

type seedOutlet struct {
	name         string
	address      string
	city         string
	state        string
	postcode     string
	latitude     float64
	longitude    float64
	phone        string
	email        string
	openingTime  string
	closingTime  string
	is24Hours    bool
	hasDriveThru bool
	hasWifi      bool
	hasParking   bool
	services     []string
}

var seedOutlets = []seedOutlet{
	{
		name: "Kopi KLCC", address: "Lot G-23A, Ground Floor, Suria KLCC, 50088 Kuala Lumpur",
		city: "Kuala Lumpur", state: "Federal Territory of Kuala Lumpur", postcode: "50088",
		latitude: 3.1570, longitude: 101.7107, phone: "+603-2382-2828", email: "klcc@kopi.coffee",
		openingTime: "07:00", closingTime: "22:00", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway"},
	},
	{
		name: "Kopi Bukit Bintang", address: "Lot LG-40, Lower Ground Floor, Pavilion KL, 168 Jalan Bukit Bintang, 55100 Kuala Lumpur",
		city: "Kuala Lumpur", state: "Federal Territory of Kuala Lumpur", postcode: "55100",
		latitude: 3.1478, longitude: 101.7147, phone: "+603-2148-8888", email: "pavilion@kopi.coffee",
		openingTime: "08:00", closingTime: "23:00", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "dine-in"},
	},
	{
		name: "Kopi SS15 Subang", address: "47-G, Jalan SS 15/4D, SS 15, 47500 Subang Jaya, Selangor",
		city: "Subang Jaya", state: "Selangor", postcode: "47500",
		latitude: 3.0738, longitude: 101.5861, phone: "+603-5634-5555", email: "ss15@kopi.coffee",
		openingTime: "07:00", closingTime: "21:00", hasDriveThru: true, hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "drive-thru", "delivery"},
	},
	{
		name: "Kopi Damansara Utama", address: "G-03, Ground Floor, Damansara Uptown, Jalan SS 21/37, Damansara Utama, 47400 Petaling Jaya, Selangor",
		city: "Petaling Jaya", state: "Selangor", postcode: "47400",
		latitude: 3.1359, longitude: 101.6253, phone: "+603-7733-9999", email: "damansara@kopi.coffee",
		openingTime: "06:30", closingTime: "22:30", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "dine-in", "meetings"},
	},
	{
		name: "Kopi KL Gateway", address: "LG-18, Lower Ground Floor, KL Gateway Mall, No.2, Jalan Kerinchi, Bangsar South, 59200 Kuala Lumpur",
		city: "Kuala Lumpur", state: "Federal Territory of Kuala Lumpur", postcode: "59200",
		latitude: 3.1167, longitude: 101.6692, phone: "+603-2201-7777", email: "klgateway@kopi.coffee",
		openingTime: "07:30", closingTime: "21:30", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "dine-in"},
	},
	{
		name: "Kopi Sunway Pyramid", address: "LG2.74A, Lower Ground 2, Sunway Pyramid, No. 3, Jalan PJS 11/15, Bandar Sunway, 47500 Subang Jaya, Selangor",
		city: "Subang Jaya", state: "Selangor", postcode: "47500",
		latitude: 3.0733, longitude: 101.6067, phone: "+603-7492-8888", email: "sunway@kopi.coffee",
		openingTime: "08:00", closingTime: "22:00", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "dine-in", "student-friendly"},
	},
	{
		name: "Kopi Setia Alam Drive Thru", address: "No. 23, Persiaran Setia Dagang, Setia Alam, Seksyen U13, 40170 Shah Alam, Selangor",
		city: "Shah Alam", state: "Selangor", postcode: "40170",
		latitude: 3.1024, longitude: 101.4444, phone: "+603-3359-6666", email: "setiaalam@kopi.coffee",
		openingTime: "06:00", closingTime: "24:00", is24Hours: true, hasDriveThru: true, hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "drive-thru", "24-hours", "delivery"},
	},
	{
		name: "Kopi IOI City Mall", address: "L1-45, Level 1, IOI City Mall, Lebuh IRC, IOI Resort City, 62502 Putrajaya, Selangor",
		city: "Putrajaya", state: "Selangor", postcode: "62502",
		latitude: 2.9264, longitude: 101.6964, phone: "+603-8945-5555", email: "ioicity@kopi.coffee",
		openingTime: "09:00", closingTime: "22:00", hasWifi: true, hasParking: true,
		services: []string{"espresso", "cold brew", "pastries", "sandwiches", "wifi", "takeaway", "dine-in", "family-friendly"},
	},
}

func (d *DB) seed() error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO outlets
		(name, address, city, state, postcode, latitude, longitude, phone, email,
		 opening_time, closing_time, is_24_hours, has_drive_thru, has_wifi, has_parking, services)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, o := range seedOutlets {
		services, err := json.Marshal(o.services)
		if err != nil {
			return fmt.Errorf("marshal services: %w", err)
		}
		if _, err := stmt.Exec(
			o.name, o.address, o.city, o.state, o.postcode, o.latitude, o.longitude,
			o.phone, o.email, o.openingTime, o.closingTime,
			o.is24Hours, o.hasDriveThru, o.hasWifi, o.hasParking, string(services),
		); err != nil {
			return fmt.Errorf("seed outlet %q: %w", o.name, err)
		}
	}

	return tx.Commit()
}

// Query validates the statement with ValidateSelect, runs it and returns the
// rows as column-keyed maps.
func (d *DB) Query(ctx context.Context, query string) ([]map[string]any, error) {
	if err := ValidateSelect(query); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SchemaInfo describes the outlets table for the SQL-generation prompt.
func SchemaInfo() string {
	return `Table: outlets
Columns:
- id: INTEGER (primary key)
- name: TEXT - outlet name (e.g. 'Kopi KLCC')
- address: TEXT - full address
- city: TEXT - city name (e.g. 'Kuala Lumpur', 'Petaling Jaya')
- state: TEXT - state name (e.g. 'Selangor')
- postcode: TEXT - postal code
- latitude: REAL, longitude: REAL - GPS coordinates
- phone: TEXT, email: TEXT
- opening_time: TEXT - HH:MM format
- closing_time: TEXT - HH:MM format
- is_24_hours: INTEGER - 1 if open 24 hours
- has_drive_thru: INTEGER - 1 if drive-thru available
- has_wifi: INTEGER - 1 if WiFi available
- has_parking: INTEGER - 1 if parking available
- services: TEXT - JSON array of services (match with LIKE, e.g. services LIKE '%drive-thru%')
- created_at: TEXT - record creation timestamp

Known services: espresso, cold brew, pastries, sandwiches, wifi, takeaway,
drive-thru, dine-in, delivery, 24-hours, meetings, student-friendly, family-friendly`
}
