package sinkers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	pgSinker "github.com/francois-poidevin/flightmap/internal/app/sinkers/db"
	fileSinker "github.com/francois-poidevin/flightmap/internal/app/sinkers/file"
	stdoutSinker "github.com/francois-poidevin/flightmap/internal/app/sinkers/stdout"
	"github.com/sirupsen/logrus"
)

const (
	TypeStdout = "STDOUT"
	TypeFile   = "FILE"
	TypeDB     = "DB"
	TypeNone   = "NONE"
)

// New picks a sinker by its configured type. An empty type means NONE.
func New(log *logrus.Logger, sinkerType string) (app.Sinker, error) {
	switch strings.ToUpper(sinkerType) {
	case TypeStdout:
		return stdoutSinker.New(log), nil
	case TypeFile:
		return fileSinker.New(log), nil
	case TypeDB:
		return pgSinker.New(log), nil
	case TypeNone, "":
		return &noneSinker{}, nil
	}
	return nil, fmt.Errorf("Wrong sinker specified: %q", sinkerType)
}

// Params returns the Init parameters matching sinkerType.
func Params(sinkerType string, file fileSinker.Configuration, db pgSinker.Configuration) interface{} {
	switch strings.ToUpper(sinkerType) {
	case TypeFile:
		return file
	case TypeDB:
		return db
	}
	return nil
}

type noneSinker struct{}

func (n *noneSinker) Init(ctx context.Context, params interface{}) error { return nil }

func (n *noneSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error { return nil }

func (n *noneSinker) Close() error { return nil }
