package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	platformdb "rail-hazard-monitor/internal/platform/db"
	"rail-hazard-monitor/internal/platform/obs"
	"strings"
	"time"
)

// SQL implementation of the AlertRepository port, for Postgres (pgx) or SQLite.
// An alert's origin is its camera's location; alerts whose camera has no
// location come back with a nil Origin.
type SQLAlertRepository struct {
	DB     *sql.DB
	Driver string
}

func NewSQLAlertRepository(db *sql.DB, driver string) *SQLAlertRepository {
	return &SQLAlertRepository{DB: db, Driver: driver}
}

const alertSelect = `
	SELECT
		a.alert_id,
		a.camera_id,
		a.severity,
		a.alert_type,
		a.status,
		a.notes,
		a.created_at,
		c.lon,
		c.lat
	FROM alerts a
	LEFT JOIN cameras c ON c.camera_id = a.camera_id
	`

// Return alerts with the query's status created at or after Since, newest first.
func (r *SQLAlertRepository) ListRecentActive(ctx context.Context, query domain.AlertQuery) (_ []domain.HazardAlert, err error) {
	defer obs.Time(ctx, "alerts.ListRecentActive")(&err)

	status := query.Status
	if status == "" {
		status = domain.StatusActive
	}

	return r.list(ctx, "list recent alerts", domain.AlertFilter{
		Status: status,
		From:   &query.Since,
		Limit:  query.Limit,
	})
}

// Return alerts matching the filter, newest first.
func (r *SQLAlertRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) (_ []domain.HazardAlert, err error) {
	defer obs.Time(ctx, "alerts.ListAlerts")(&err)

	return r.list(ctx, "list alerts", filter)
}

func (r *SQLAlertRepository) list(ctx context.Context, op string, filter domain.AlertFilter) ([]domain.HazardAlert, error) {
	if r.DB == nil {
		return nil, errors.New("sql alert repository: DB is nil")
	}

	where, args := r.filterClause(filter)
	q := alertSelect + where + "\n\tORDER BY a.created_at DESC, a.alert_id"
	if filter.Limit > 0 {
		q += "\n\tLIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.DB.QueryContext(ctx, bind(r.Driver, q+";"), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query alerts table: %w", op, err)
	}
	defer rows.Close()

	alerts := make([]domain.HazardAlert, 0, 32)
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}

	return alerts, nil
}

func (r *SQLAlertRepository) filterClause(f domain.AlertFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Status != "" {
		add("a.status = ?", string(f.Status))
	}
	if f.Type != "" {
		add("a.alert_type = ?", string(f.Type))
	}
	if f.Severity != "" {
		add("a.severity = ?", string(f.Severity))
	}
	if f.CameraID != "" {
		add("a.camera_id = ?", f.CameraID)
	}
	if f.From != nil {
		add("a.created_at >= ?", timeArg(r.Driver, *f.From))
	}
	if f.To != nil {
		add("a.created_at <= ?", timeArg(r.Driver, *f.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *SQLAlertRepository) scanAlert(rows *sql.Rows) (domain.HazardAlert, error) {
	var a domain.HazardAlert
	var severity, typ, status string
	var lon, lat sql.NullFloat64

	var created any
	var createdTime time.Time
	var createdMillis int64
	if r.Driver == platformdb.DriverPostgres {
		created = &createdTime
	} else {
		created = &createdMillis
	}

	if err := rows.Scan(&a.ID, &a.CameraID, &severity, &typ, &status, &a.Notes, created, &lon, &lat); err != nil {
		return domain.HazardAlert{}, err
	}

	if r.Driver != platformdb.DriverPostgres {
		createdTime = time.UnixMilli(createdMillis)
	}

	a.Severity = domain.AlertSeverity(severity)
	a.Type = domain.AlertType(typ)
	a.Status = domain.AlertStatus(status)
	a.CreatedAt = createdTime.UTC()
	a.Origin = nullablePoint(lon, lat)
	return a, nil
}
