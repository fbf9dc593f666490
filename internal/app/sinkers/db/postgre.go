package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/sirupsen/logrus"
)

const (
	schemaname = "flighttracker"
	tablename  = "snapshot_flight"
)

var (
	createSchemaSQL = "CREATE SCHEMA IF NOT EXISTS " + schemaname
	createTableSQL  = "CREATE TABLE IF NOT EXISTS " + schemaname + "." + tablename + " (SnapshotTime timestamp NOT NULL, Source varchar(16) NOT NULL, ID varchar(40) NOT NULL, Callsign varchar(40), OriginCountry varchar(80), Lat decimal, Lon decimal, Heading decimal, Velocity decimal, Altitude decimal, OnGround boolean, VerticalRate decimal, LastContact timestamp, geom geometry(Geometry,4326))"
	insertSQL       = "INSERT INTO " + schemaname + "." + tablename + " VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, ST_GeomFromText($14, 4326))"
)

type PostGreSinker struct {
	Log *logrus.Logger
	db  *sql.DB
}

func New(log *logrus.Logger) app.Sinker {
	return &PostGreSinker{Log: log}
}

// DSN builds the lib/pq connection string.
func DSN(parameters Configuration) string {
	sslmode := parameters.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s dbname=%s sslmode=%s",
		parameters.Host, parameters.Port, parameters.User, parameters.Password, parameters.Dbname, sslmode)
}

func (s *PostGreSinker) Init(ctx context.Context, params interface{}) error {
	parameters, ok := params.(Configuration)
	if !ok {
		return fmt.Errorf("db sinker expects a db.Configuration, got %T", params)
	}

	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"host":   parameters.Host,
		"port":   parameters.Port,
		"dbName": parameters.Dbname,
	}).Info("Init DB ...")

	db, err := sql.Open("postgres", DSN(parameters))
	if err != nil {
		return err
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return err
	}

	s.Log.WithContext(ctx).Info("Successfully connected : " + parameters.Host)

	s.db = db

	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"SQL": createSchemaSQL,
	}).Info("create schema")
	if _, err = s.db.ExecContext(ctx, createSchemaSQL); err != nil {
		return err
	}

	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"SQL": createTableSQL,
	}).Info("create table")
	if _, err = s.db.ExecContext(ctx, createTableSQL); err != nil {
		return err
	}

	return nil
}

func (s *PostGreSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error {
	if len(snap.Flights) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	nbRow := int64(0)
	for _, flight := range snap.Flights {
		result, err := stmt.ExecContext(ctx, insertArgs(t, snap.Source, flight)...)
		if err != nil {
			tx.Rollback()
			return err
		}
		nb, _ := result.RowsAffected()
		nbRow = nbRow + nb
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.Log.WithContext(ctx).WithFields(logrus.Fields{"Rows Affected": nbRow}).Debug("Insert in DB ...")
	return nil
}

func (s *PostGreSinker) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// insertArgs lays out one flight in insertSQL column order.
func insertArgs(t time.Time, source app.Source, flight app.FlightState) []interface{} {
	var lastContact interface{}
	if flight.LastContact != nil {
		lastContact = time.Unix(*flight.LastContact, 0).UTC()
	}
	return []interface{}{
		t.UTC(),
		string(source),
		flight.ID,
		nullString(flight.Callsign),
		nullString(flight.OriginCountry),
		flight.Lat,
		flight.Lon,
		flight.Heading,
		nullFloat(flight.Velocity),
		nullFloat(flight.Altitude),
		nullBool(flight.OnGround),
		nullFloat(flight.VerticalRate),
		lastContact,
		tools.PointToWKT(flight.Position()),
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
