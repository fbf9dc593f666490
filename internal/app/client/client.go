package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Second

var ErrBadBody = errors.New("snapshot body is not {count, flights, source}")

// Client polls the backend snapshot endpoint.
type Client struct {
	Log        *logrus.Logger
	server     string
	httpClient *http.Client
}

func New(log *logrus.Logger, server string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Log:        log,
		server:     strings.TrimRight(server, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type snapshotBody struct {
	Count   int               `json:"count"`
	Flights []json.RawMessage `json:"flights"`
	Source  app.Source        `json:"source"`
}

// flightEntry mirrors app.FlightState with the required fields as pointers to spot missing ones.
type flightEntry struct {
	ID            string   `json:"id"`
	Callsign      string   `json:"callsign"`
	OriginCountry string   `json:"originCountry"`
	Lat           *float64 `json:"lat"`
	Lon           *float64 `json:"lon"`
	Heading       float64  `json:"heading"`
	Velocity      *float64 `json:"velocity"`
	Altitude      *float64 `json:"altitude"`
	OnGround      *bool    `json:"onGround"`
	VerticalRate  *float64 `json:"verticalRate"`
	LastContact   *int64   `json:"lastContact"`
}

// Snapshot fetches {server}/api/flights. Entries that cannot be decoded are dropped.
func (c *Client) Snapshot(ctx context.Context) (app.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/api/flights", nil)
	if err != nil {
		return app.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("snapshot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return app.Snapshot{}, fmt.Errorf("snapshot request: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("snapshot read: %w", err)
	}
	return c.decode(ctx, raw)
}

func (c *Client) decode(ctx context.Context, raw []byte) (app.Snapshot, error) {
	var body snapshotBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return app.Snapshot{}, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if body.Flights == nil {
		return app.Snapshot{}, fmt.Errorf("%w: flights is missing", ErrBadBody)
	}

	flights := make([]app.FlightState, 0, len(body.Flights))
	for idx, entry := range body.Flights {
		var fe flightEntry
		if err := json.Unmarshal(entry, &fe); err != nil {
			c.Log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": err,
				"index": idx,
			}).Warn("Dropping undecodable flight entry")
			continue
		}
		if fe.ID == "" || fe.Lat == nil || fe.Lon == nil {
			c.Log.WithContext(ctx).WithFields(logrus.Fields{
				"index": idx,
				"id":    fe.ID,
			}).Warn("Dropping flight entry without id or position")
			continue
		}
		flights = append(flights, app.FlightState{
			ID:            fe.ID,
			Callsign:      fe.Callsign,
			OriginCountry: fe.OriginCountry,
			Lat:           *fe.Lat,
			Lon:           *fe.Lon,
			Heading:       fe.Heading,
			Velocity:      fe.Velocity,
			Altitude:      fe.Altitude,
			OnGround:      fe.OnGround,
			VerticalRate:  fe.VerticalRate,
			LastContact:   fe.LastContact,
		})
	}

	if body.Count != len(body.Flights) {
		c.Log.WithContext(ctx).WithFields(logrus.Fields{
			"count":   body.Count,
			"flights": len(body.Flights),
		}).Debug("Snapshot count does not match its flights")
	}

	return app.Snapshot{Count: len(flights), Flights: flights, Source: body.Source}, nil
}
