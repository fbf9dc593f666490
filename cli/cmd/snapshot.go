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
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print one snapshot as JSON",
	Long: `Fetch one snapshot through the position source (same fallback rules as
	GET /api/flights) and print it on stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		bboxParam, _ := cmd.Flags().GetString("bbox")
		if errRun := runSnapshot(ctx, os.Stdout, os.Stderr, bboxParam); errRun != nil {
			log.WithContext(ctx).WithFields(logrus.Fields{
				"Error": errRun,
			}).Error("Unable to print snapshot")
			os.Exit(1)
		}
	},
}

// runSnapshot keeps stdout for the JSON document only, logs go to stderr.
func runSnapshot(ctx context.Context, stdout, stderr io.Writer, bboxParam string) error {
	log.Out = stderr

	// Initialize config
	initConfig()

	adapter, errAdapter := newAdapter(*conf)
	if errAdapter != nil {
		return fmt.Errorf("building position source: %w", errAdapter)
	}

	if bboxParam == "" {
		bboxParam = conf.Source.Bbox
	}
	bbox, errBbox := optionalBbox(bboxParam)
	if errBbox != nil {
		return fmt.Errorf("interpreting parameter bbox: %w", errBbox)
	}

	result, errJSONMarshal := json.MarshalIndent(adapter.FetchSnapshot(ctx, bbox), "", "  ")
	if errJSONMarshal != nil {
		return fmt.Errorf("encoding snapshot: %w", errJSONMarshal)
	}
	_, errWrite := fmt.Fprintln(stdout, string(result))
	return errWrite
}

func init() {
	snapshotCmd.Flags().String("bbox", "", "Searching Bounding Box (SW^NE) 'lat,lon^lat,lon'")
}
