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
	"os"
	"os/signal"
	"syscall"

	"github.com/francois-poidevin/flightmap/internal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the backend flights as a moving fleet",
	Long: `Poll GET /api/flights every refresh seconds, keep one marker per flight in sync
	with the latest snapshot and move markers smoothly between two polls.
	The render layer is either log lines (--ui log) or a terminal UI (--ui tui).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		// Initialize config
		initConfig()

		errExec := internal.Execute(ctx, log, *conf)
		if errExec != nil {
			log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": errExec,
			}).Error("Error in Execute processing")
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().String("server", "http://localhost:5000", "backend root URL")
	watchCmd.Flags().Int("refresh", 3, "refresh time for polling flights (sec)")
	watchCmd.Flags().String("ui", "log", "render layer (log|tui)")
	watchCmd.Flags().String("query", "", "initial search filter")
	viper.BindPFlag("watch.server", watchCmd.Flags().Lookup("server"))
	viper.BindPFlag("watch.refresh", watchCmd.Flags().Lookup("refresh"))
	viper.BindPFlag("watch.ui", watchCmd.Flags().Lookup("ui"))
	viper.BindPFlag("watch.query", watchCmd.Flags().Lookup("query"))
}
