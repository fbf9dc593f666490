package cmd

/*
Copyright © 2019 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/francois-poidevin/flightmap/config"
	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/service"
	"github.com/francois-poidevin/flightmap/internal/app/sinkers"
	"github.com/francois-poidevin/flightmap/internal/app/source"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 5 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flight snapshot HTTP API",
	Long: `Serve GET /api/flights (live OpenSky data, or synthetic flights without credentials
	or when OpenSky fails), GET /health and GET /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		// Initialize config
		initConfig()

		adapter, errAdapter := newAdapter(*conf)
		if errAdapter != nil {
			log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": errAdapter,
			}).Error("Unable to build position source")
			os.Exit(1)
		}

		sinker, errSinker := newSinker(ctx, *conf)
		if errSinker != nil {
			log.WithContext(ctx).WithFields(logrus.Fields{
				"Error":      errSinker,
				"sinkerType": conf.Sinker.Type,
			}).Error("Unable to initiate sinker")
			os.Exit(1)
		}

		bbox, errBbox := optionalBbox(conf.Source.Bbox)
		if errBbox != nil {
			sinker.Close()
			log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": errBbox,
			}).Error("Unable to interpret parameter bbox")
			os.Exit(1)
		}

		svc := service.New(log, adapter, sinker, conf.Sinker.Type, bbox)
		srv := &http.Server{
			Addr:         ":" + strconv.Itoa(conf.Server.Port),
			Handler:      svc.Handler(conf.Server.RateLimit),
			ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		}

		log.WithContext(ctx).WithFields(logrus.Fields{
			"port":       conf.Server.Port,
			"mode":       adapter.Mode(),
			"sinkerType": conf.Sinker.Type,
		}).Info("Flight backend listening")

		if errServe := serve(ctx, srv, sinker); errServe != nil {
			log.WithFields(logrus.Fields{
				"Error": errServe,
			}).Error("HTTP server stopped")
			os.Exit(1)
		}
	},
}

// serve runs srv until ctx ends, then shuts it down. The sinker is closed on every path.
func serve(ctx context.Context, srv *http.Server, sinker app.Sinker) error {
	defer func() {
		if errClose := sinker.Close(); errClose != nil {
			log.WithFields(logrus.Fields{
				"Error": errClose,
			}).Error("Unable to close sinker")
		}
	}()

	stopped := make(chan struct{})
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithFields(logrus.Fields{
				"Error": err,
			}).Error("HTTP server shutdown")
		}
	}()

	errListen := srv.ListenAndServe()
	close(stopped)
	// in-flight requests may still sink until the shutdown is over
	<-shutdownDone
	if errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func init() {
	serveCmd.Flags().Int("port", 5000, "HTTP listening port")
	serveCmd.Flags().String("bbox", "", "default area 'lat,lon^lat,lon' (SW^NE)")
	serveCmd.Flags().String("sinkerType", "NONE", "set the sinker type (STDOUT|FILE|DB|NONE)")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("source.bbox", serveCmd.Flags().Lookup("bbox"))
	viper.BindPFlag("sinker.type", serveCmd.Flags().Lookup("sinkerType"))
}

// newAdapter wires OpenSky (when credentials are set) and the synthetic generator.
func newAdapter(c config.Configuration) (*source.Adapter, error) {
	band, err := optionalBbox(c.Source.MockBand)
	if err != nil {
		return nil, err
	}
	genConf := source.GeneratorConfig{
		Stateful: c.Source.MockStateful,
	}
	if band != nil {
		genConf.Band = *band
	}
	generator := source.NewGenerator(genConf, nil)

	var upstream source.Source
	opensky := source.NewOpenSky(log, source.OpenSkyConfig{
		URL:              c.Source.OpenskyURL,
		User:             c.Source.OpenskyUser,
		Password:         c.Source.OpenskyPass,
		Timeout:          time.Duration(c.Source.Timeout) * time.Second,
		MinInterval:      time.Duration(c.Source.MinInterval) * time.Millisecond,
		BreakerThreshold: uint32(c.Source.BreakerThreshold),
		BreakerTimeout:   time.Duration(c.Source.BreakerTimeout) * time.Second,
	})
	if opensky.Configured() {
		upstream = opensky
	}

	return source.NewAdapter(log, upstream, generator, c.Source.MockCount, c.Source.FallbackCount), nil
}

func newSinker(ctx context.Context, c config.Configuration) (app.Sinker, error) {
	log.WithContext(ctx).Info("Initiate " + c.Sinker.Type + " Sinker")
	sinker, err := sinkers.New(log, c.Sinker.Type)
	if err != nil {
		return nil, err
	}
	if err := sinker.Init(ctx, sinkers.Params(c.Sinker.Type, c.Sinker.File, c.Sinker.Postgres)); err != nil {
		return nil, err
	}
	return sinker, nil
}

// optionalBbox parses a bbox string, an empty one means no restriction.
func optionalBbox(data string) (*tools.Bbox, error) {
	if data == "" {
		return nil, nil
	}
	bbox, err := tools.GetBbox(data)
	if err != nil {
		return nil, err
	}
	return &bbox, nil
}
