package repositories

import (
	"context"
	"database/sql"
	"errors"
	"rail-hazard-monitor/internal/domain"
	platformdb "rail-hazard-monitor/internal/platform/db"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestBind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?"

	if got := bind(platformdb.DriverPostgres, q); got != "SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3" {
		t.Fatalf("bind postgres = %q", got)
	}
	if got := bind(platformdb.DriverSQLite, q); got != q {
		t.Fatalf("bind sqlite = %q", got)
	}
}

func TestPostgresListRecentActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	since := time.Date(2026, 4, 10, 9, 25, 0, 0, time.UTC)
	created := since.Add(3 * time.Minute)

	rows := sqlmock.NewRows([]string{"alert_id", "camera_id", "severity", "alert_type", "status", "notes", "created_at", "lon", "lat"}).
		AddRow("A1", "CAM-1", "critical", "animal_detected", "active", "", created, 77.22, 28.64).
		AddRow("A2", "CAM-2", "low", "other", "active", "no fix", created.Add(-time.Minute), nil, nil)

	mock.ExpectQuery(`FROM alerts a\s+LEFT JOIN cameras c ON c.camera_id = a.camera_id\s+WHERE a.status = \$1 AND a.created_at >= \$2\s+ORDER BY a.created_at DESC, a.alert_id\s+LIMIT \$3`).
		WithArgs("active", since, 50).
		WillReturnRows(rows)

	repo := NewSQLAlertRepository(db, platformdb.DriverPostgres)
	alerts, err := repo.ListRecentActive(context.Background(), domain.AlertQuery{Status: domain.StatusActive, Since: since, Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].Origin == nil || alerts[0].Origin.Lon != 77.22 || alerts[0].Origin.Lat != 28.64 {
		t.Fatalf("origin = %+v", alerts[0].Origin)
	}
	if !alerts[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", alerts[0].CreatedAt, created)
	}
	if alerts[1].Origin != nil {
		t.Fatalf("alert without camera location has origin %+v", alerts[1].Origin)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresListAlertsWithoutFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`LEFT JOIN cameras c ON c.camera_id = a.camera_id\s+ORDER BY a.created_at DESC, a.alert_id;`).
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"alert_id", "camera_id", "severity", "alert_type", "status", "notes", "created_at", "lon", "lat"}))

	repo := NewSQLAlertRepository(db, platformdb.DriverPostgres)
	alerts, err := repo.ListAlerts(context.Background(), domain.AlertFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(alerts))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresListAlertsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM alerts a`).WillReturnError(sqlmock.ErrCancelled)

	repo := NewSQLAlertRepository(db, platformdb.DriverPostgres)
	_, err = repo.ListAlerts(context.Background(), domain.AlertFilter{Severity: domain.SeverityHigh})
	if !errors.Is(err, sqlmock.ErrCancelled) {
		t.Fatalf("err = %v, want wrapped ErrCancelled", err)
	}
}

func TestPostgresLocateStationNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT lon, lat\s+FROM stations\s+WHERE station_code = \$1`).
		WithArgs("XXXX").
		WillReturnError(sql.ErrNoRows)

	repo := NewSQLStationRepository(db, platformdb.DriverPostgres)
	_, err = repo.Locate(context.Background(), "XXXX")
	if !errors.Is(err, domain.ErrStationNotFound) {
		t.Fatalf("err = %v, want ErrStationNotFound", err)
	}
}

func TestPostgresInsertTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	at := time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO speed_transitions`).
		WithArgs("e1", "12951", "monitoring", "slowing_down", "A", 20.0, 105.0, nil, "ALT-1", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewSQLTransitionRepository(db, platformdb.DriverPostgres)
	err = repo.PublishTransition(context.Background(), domain.TransitionEvent{
		EventID: "e1", VehicleID: "12951", From: domain.PhaseMonitoring, To: domain.PhaseSlowingDown,
		Tier: domain.TierA, TargetSpeed: 20, CurrentSpeed: 105, AlertID: "ALT-1", At: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
