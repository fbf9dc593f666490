package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/gocarina/gocsv"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FileSinker appends every snapshot to a file
type FileSinker struct {
	Log    *logrus.Logger
	mu     sync.Mutex
	format string
	f      *os.File
	header bool
}

//flightRow - one CSV line
type flightRow struct {
	Time          string `csv:"time"`
	Source        string `csv:"source"`
	ID            string `csv:"id"`
	Callsign      string `csv:"callsign"`
	OriginCountry string `csv:"originCountry"`
	Lat           string `csv:"lat"`
	Lon           string `csv:"lon"`
	Heading       string `csv:"heading"`
	Velocity      string `csv:"velocity"`
	Altitude      string `csv:"altitude"`
	OnGround      string `csv:"onGround"`
	VerticalRate  string `csv:"verticalRate"`
	LastContact   string `csv:"lastContact"`
}

func New(log *logrus.Logger) app.Sinker {
	return &FileSinker{Log: log}
}

func (s *FileSinker) Init(ctx context.Context, params interface{}) error {
	parameters, ok := params.(Configuration)
	if !ok {
		return fmt.Errorf("file sinker expects a file.Configuration, got %T", params)
	}
	switch parameters.Format {
	case "", FormatJSON:
		s.format = FormatJSON
	case FormatCSV:
		s.format = FormatCSV
	default:
		return fmt.Errorf("unknown file sinker format %q", parameters.Format)
	}

	if _, err := os.Stat(parameters.Dir); os.IsNotExist(err) {
		err := os.MkdirAll(parameters.Dir, os.ModePerm)
		if err != nil {
			s.Log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": err,
			}).Error("Unable to create folder '" + parameters.Dir + "'")
			return err
		}
	}

	f, err := os.OpenFile(filepath.Join(parameters.Dir, parameters.Name),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		s.Log.WithContext(ctx).WithFields(logrus.Fields{
			"Error": err,
		}).Error("Unable to Open file")
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.f = f
	s.header = info.Size() > 0

	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"file":   f.Name(),
		"format": s.format,
	}).Info("File sinker ready")
	return nil
}

func (s *FileSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return errors.New("No file for storing snapshots")
	}

	w := bufio.NewWriter(s.f)
	var errWrite error
	if s.format == FormatCSV {
		errWrite = s.writeCSV(w, t, snap)
	} else {
		errWrite = s.writeJSON(w, t, snap)
	}
	if errWrite != nil {
		return errWrite
	}
	if errFlush := w.Flush(); errFlush != nil {
		return errFlush
	}

	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"number of Flights": snap.Count,
		"source":            snap.Source,
	}).Debug("Snapshot written")
	return nil
}

func (s *FileSinker) writeJSON(w *bufio.Writer, t time.Time, snap app.Snapshot) error {
	line, err := json.Marshal(struct {
		Time time.Time `json:"time"`
		app.Snapshot
	}{Time: t.UTC(), Snapshot: snap})
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func (s *FileSinker) writeCSV(w *bufio.Writer, t time.Time, snap app.Snapshot) error {
	if len(snap.Flights) == 0 {
		return nil
	}
	stamp := t.UTC().Format(time.RFC3339)
	rows := make([]*flightRow, 0, len(snap.Flights))
	for _, f := range snap.Flights {
		rows = append(rows, &flightRow{
			Time:          stamp,
			Source:        string(snap.Source),
			ID:            f.ID,
			Callsign:      f.Callsign,
			OriginCountry: f.OriginCountry,
			Lat:           formatFloat(&f.Lat),
			Lon:           formatFloat(&f.Lon),
			Heading:       formatFloat(&f.Heading),
			Velocity:      formatFloat(f.Velocity),
			Altitude:      formatFloat(f.Altitude),
			OnGround:      formatBool(f.OnGround),
			VerticalRate:  formatFloat(f.VerticalRate),
			LastContact:   formatInt(f.LastContact),
		})
	}
	if !s.header {
		s.header = true
		return gocsv.Marshal(&rows, w)
	}
	return gocsv.MarshalWithoutHeaders(&rows, w)
}

func (s *FileSinker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
