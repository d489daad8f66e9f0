// Package his resolves hospital grades from the hospital information system
package his

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/metrics"
	"github.com/claimflow/claims/internal/shared/types"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLServerDirectory reads hospital grades from the HIS hospital table.
// Grades rarely change, so hits are cached for the life of the process.
type SQLServerDirectory struct {
	db    *sql.DB
	query string

	mu    sync.RWMutex
	cache map[string]domain.HospitalLevel
}

// Open connects to the HIS database
func Open(ctx context.Context, cfg config.HISConfig) (*SQLServerDirectory, error) {
	if !tableName.MatchString(cfg.HospitalTable) {
		return nil, fmt.Errorf("invalid HIS hospital table name %q", cfg.HospitalTable)
	}

	db, err := sql.Open("sqlserver", connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open HIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping HIS database: %w", err)
	}

	return &SQLServerDirectory{
		db:    db,
		query: lookupQuery(cfg.HospitalTable),
		cache: make(map[string]domain.HospitalLevel),
	}, nil
}

func connectionString(cfg config.HISConfig) string {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s;app name=claims",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	if cfg.Encrypt {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	} else {
		connStr += ";encrypt=disable"
	}
	return connStr
}

func lookupQuery(table string) string {
	return fmt.Sprintf(`
		SELECT TOP 1 Grade
		FROM %s
		WHERE (@id <> '' AND HospitalId = @id) OR HospitalName = @name
		ORDER BY CASE WHEN HospitalId = @id THEN 0 ELSE 1 END`, table)
}

// Level implements domain.HospitalDirectory
func (d *SQLServerDirectory) Level(ctx context.Context, hospitalID types.ID, hospitalName string) (domain.HospitalLevel, error) {
	key := cacheKey(hospitalID, hospitalName)

	d.mu.RLock()
	level, ok := d.cache[key]
	d.mu.RUnlock()
	if ok {
		metrics.RecordHospitalLookup("cache")
		return level, nil
	}

	start := time.Now()
	var grade sql.NullString
	err := d.db.QueryRowContext(ctx, d.query,
		sql.Named("id", hospitalID.String()),
		sql.Named("name", strings.TrimSpace(hospitalName)),
	).Scan(&grade)
	metrics.RecordDBQuery("his_hospital_grade", time.Since(start))

	if err == sql.ErrNoRows {
		metrics.RecordHospitalLookup("not_found")
		return domain.HospitalLevelUnknown, errors.NotFound("hospital", hospitalName)
	}
	if err != nil {
		metrics.RecordHospitalLookup("error")
		return domain.HospitalLevelUnknown, fmt.Errorf("failed to query hospital grade: %w", err)
	}

	level = ParseGrade(grade.String)
	if level == domain.HospitalLevelUnknown {
		metrics.RecordHospitalLookup("ungraded")
		return level, errors.NotFound("hospital grade", hospitalName)
	}

	d.mu.Lock()
	d.cache[key] = level
	d.mu.Unlock()

	metrics.RecordHospitalLookup("found")
	return level, nil
}

// Health pings the HIS database
func (d *SQLServerDirectory) Health(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the HIS connection pool
func (d *SQLServerDirectory) Close() error {
	return d.db.Close()
}

// ParseGrade maps the HIS grade column to a HospitalLevel. HIS stores either
// the numeric grade or its Chinese name, optionally with a class suffix
// such as 三级甲等.
func ParseGrade(raw string) domain.HospitalLevel {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= int(domain.HospitalLevelPrimary) && n <= int(domain.HospitalLevelTertiary) {
			return domain.HospitalLevel(n)
		}
		return domain.HospitalLevelUnknown
	}

	switch {
	case strings.HasPrefix(raw, "三级"):
		return domain.HospitalLevelTertiary
	case strings.HasPrefix(raw, "二级"):
		return domain.HospitalLevelSecondary
	case strings.HasPrefix(raw, "一级"):
		return domain.HospitalLevelPrimary
	}
	return domain.HospitalLevelUnknown
}

func cacheKey(id types.ID, name string) string {
	if !id.IsZero() {
		return "id:" + id.String()
	}
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

// StaticDirectory serves grades from a fixed table. It is used when HIS is
// disabled and in tests.
type StaticDirectory struct {
	byID   map[types.ID]domain.HospitalLevel
	byName map[string]domain.HospitalLevel
}

// Hospital is one row of a StaticDirectory
type Hospital struct {
	ID    types.ID
	Name  string
	Level domain.HospitalLevel
}

func NewStaticDirectory(hospitals ...Hospital) *StaticDirectory {
	d := &StaticDirectory{
		byID:   make(map[types.ID]domain.HospitalLevel),
		byName: make(map[string]domain.HospitalLevel),
	}
	for _, h := range hospitals {
		if !h.ID.IsZero() {
			d.byID[h.ID] = h.Level
		}
		if h.Name != "" {
			d.byName[strings.ToLower(strings.TrimSpace(h.Name))] = h.Level
		}
	}
	return d
}

// Level implements domain.HospitalDirectory
func (d *StaticDirectory) Level(ctx context.Context, hospitalID types.ID, hospitalName string) (domain.HospitalLevel, error) {
	if level, ok := d.byID[hospitalID]; ok && !hospitalID.IsZero() {
		metrics.RecordHospitalLookup("found")
		return level, nil
	}
	if level, ok := d.byName[strings.ToLower(strings.TrimSpace(hospitalName))]; ok {
		metrics.RecordHospitalLookup("found")
		return level, nil
	}
	metrics.RecordHospitalLookup("not_found")
	return domain.HospitalLevelUnknown, errors.NotFound("hospital", hospitalName)
}

var (
	_ domain.HospitalDirectory = (*SQLServerDirectory)(nil)
	_ domain.HospitalDirectory = (*StaticDirectory)(nil)
)
