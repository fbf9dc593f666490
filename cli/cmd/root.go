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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/francois-poidevin/flightmap/config"
	defaults "github.com/mcuadros/go-defaults"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "FT"
	defaultConfigName = ".flightmap.toml"
)

// env names kept from the first node backend
var legacyEnv = map[string]string{
	"source.openskyuser": "OPENSKY_USER",
	"source.openskypass": "OPENSKY_PASS",
	"server.port":        "PORT",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flightmap",
	Short: "Flightmap serves live flight positions and follows them as a moving fleet",
	Long: `Flightmap exposes the flights of a bounding box (OpenSky Network, or synthetic
	flights when no credentials are set) over HTTP, and watches that endpoint to keep
	a fleet of markers in sync with smooth interpolated motion.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var (
	log     *logrus.Logger
	cfgFile string
	conf    = &config.Configuration{}
)

func init() {
	//log handling
	log = logrus.New()
	log.Formatter = new(logrus.TextFormatter)
	log.Formatter.(*logrus.TextFormatter).DisableColors = true
	log.Level = logrus.InfoLevel
	log.Out = os.Stdout

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+defaultConfigName+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	defaults.SetDefaults(conf)

	for k, v := range asEnvVariables(conf, "", false) {
		key := strings.ToLower(strings.Replace(k, "_", ".", -1))
		viper.SetDefault(key, v)
		names := []string{key, envPrefix + "_" + k}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		err := viper.BindEnv(names...)
		if err != nil {
			log.WithFields(logrus.Fields{
				"var": envPrefix + "_" + k,
			}).Error("Unable to bind environment variable")
		}
	}

	if cfgFile == "" {
		if home, err := homedir.Dir(); err == nil {
			candidate := filepath.Join(home, defaultConfigName)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
			}
		}
	}

	if cfgFile != "" {
		// If the config file doesn't exists, let's exit
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			log.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("File doesn't exists")
		}

		log.WithFields(logrus.Fields{
			"File": cfgFile,
		}).Info("Reading configuration file")

		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("toml")
		if err := viper.ReadInConfig(); err != nil {
			log.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Unable to read config")
		}
	}

	if err := viper.Unmarshal(conf); err != nil {
		log.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Unable to parse config")
	}

	initLog()
}

func initLog() {
	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		log.WithFields(logrus.Fields{
			"level": conf.Log.Level,
		}).Warn("Unknown log level, keeping info")
		level = logrus.InfoLevel
	}
	log.Level = level

	if strings.ToLower(conf.Log.Format) == "json" {
		log.Formatter = new(logrus.JSONFormatter)
	}
}
