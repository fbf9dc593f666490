package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/metrics"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultOpenSkyURL is the OpenSky Network REST root
	DefaultOpenSkyURL = "https://opensky-network.org/api"
	// MaxTimeout bounds every upstream call
	MaxTimeout = 10 * time.Second

	breakerName = "opensky"
)

// errCallerGone marks an upstream call abandoned by its caller.
var errCallerGone = errors.New("caller gone")

// Source - a provider of raw flight states (live or synthetic)
type Source interface {
	Fetch(ctx context.Context, bbox *tools.Bbox) ([]app.FlightState, error)
}

// OpenSkyConfig - upstream client settings
type OpenSkyConfig struct {
	URL              string
	User             string
	Password         string
	Timeout          time.Duration
	MinInterval      time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// OpenSky fetches /states/all behind a rate limiter and a circuit breaker.
type OpenSky struct {
	Log        *logrus.Logger
	conf       OpenSkyConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]app.FlightState]
}

// NewOpenSky builds the upstream client. Timeout is capped to MaxTimeout.
func NewOpenSky(log *logrus.Logger, conf OpenSkyConfig) *OpenSky {
	if conf.URL == "" {
		conf.URL = DefaultOpenSkyURL
	}
	if conf.Timeout <= 0 || conf.Timeout > MaxTimeout {
		conf.Timeout = MaxTimeout
	}
	if conf.BreakerThreshold == 0 {
		conf.BreakerThreshold = 3
	}
	if conf.BreakerTimeout <= 0 {
		conf.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if conf.MinInterval > 0 {
		limit = rate.Every(conf.MinInterval)
	}

	o := &OpenSky{
		Log:        log,
		conf:       conf,
		httpClient: &http.Client{Timeout: conf.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}

	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	o.cb = gobreaker.NewCircuitBreaker[[]app.FlightState](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     conf.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= conf.BreakerThreshold
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return o
}

// Configured reports whether credentials are present.
func (o *OpenSky) Configured() bool {
	return o.conf.User != "" && o.conf.Password != ""
}

// Fetch returns the mapped flights. An empty slice with a nil error means the upstream
// answered but nothing was usable; the caller decides what that means.
// The limiter wait happens outside the breaker, and a call ended by the caller's own
// context is excluded from the breaker counts.
func (o *OpenSky) Fetch(ctx context.Context, bbox *tools.Bbox) ([]app.FlightState, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.conf.Timeout)
	defer cancel()

	if errWait := o.limiter.Wait(callCtx); errWait != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUpstreamUnavailable, errWait)
	}

	flights, err := o.cb.Execute(func() ([]app.FlightState, error) {
		flights, errFetch := o.fetch(callCtx, bbox)
		if errFetch != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, errFetch)
		}
		return flights, errFetch
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return flights, err
}

func (o *OpenSky) fetch(ctx context.Context, bbox *tools.Bbox) ([]app.FlightState, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, o.statesURL(bbox), nil)
	if errReq != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, errReq)
	}
	req.SetBasicAuth(o.conf.User, o.conf.Password)
	req.Header.Set("Accept", "application/json")

	resp, errHTTPGet := o.httpClient.Do(req)
	if errHTTPGet != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, errHTTPGet)
	}
	defer func() {
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused, never surface the body
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}

	var body statesResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&body); errDecode != nil {
		return nil, fmt.Errorf("%w: decoding states: %v", ErrUpstreamUnavailable, errDecode)
	}

	flights, malformed := mapStates(body.States)
	if len(malformed) > 0 {
		metrics.MalformedRecords.Add(float64(len(malformed)))
		for _, m := range malformed {
			o.Log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": m,
			}).Debug("Dropped upstream record")
		}
		o.Log.WithContext(ctx).WithFields(logrus.Fields{
			"dropped": len(malformed),
			"kept":    len(flights),
		}).Info("Upstream records failed validation")
	}
	return flights, nil
}

func (o *OpenSky) statesURL(bbox *tools.Bbox) string {
	u := o.conf.URL + "/states/all"
	if bbox == nil {
		return u
	}
	q := url.Values{}
	q.Set("lamin", strconv.FormatFloat(bbox.LatSW, 'f', -1, 64))
	q.Set("lomin", strconv.FormatFloat(bbox.LonSW, 'f', -1, 64))
	q.Set("lamax", strconv.FormatFloat(bbox.LatNE, 'f', -1, 64))
	q.Set("lomax", strconv.FormatFloat(bbox.LonNE, 'f', -1, 64))
	return u + "?" + q.Encode()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
