package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/francois-poidevin/flightmap/config"
	defaults "github.com/mcuadros/go-defaults"
	toml "github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
)

// -----------------------------------------------------------------------------

var configNewAsEnvFlag bool

// -----------------------------------------------------------------------------

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Initialize a default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newConfig(configNewAsEnvFlag)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	configNewCmd.Flags().BoolVar(&configNewAsEnvFlag, "env", false, "print the defaults as environment variables")
	configCmd.AddCommand(configNewCmd)
}

// newConfig renders the default configuration as TOML or as export lines.
func newConfig(asEnv bool) (string, error) {
	c := &config.Configuration{}
	defaults.SetDefaults(c)

	if !asEnv {
		btes, err := toml.Marshal(*c)
		if err != nil {
			return "", fmt.Errorf("Error during configuration export: %w", err)
		}
		return string(btes), nil
	}

	m := asEnvVariables(c, envPrefix, true)
	keys := []string{}
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "export %s=\"%s\"\n", k, m[k])
	}
	return sb.String(), nil
}

// asEnvVariables flattens a struct into PREFIX_SECTION_FIELD -> value
func asEnvVariables(o interface{}, prefix string, skipCommented bool) map[string]string {
	r := map[string]string{}
	prefix = strings.ToUpper(prefix)
	delim := "_"
	if prefix == "" {
		delim = ""
	}
	fields := structs.Fields(o)
	for _, f := range fields {
		if skipCommented {
			tag := f.Tag("commented")
			if tag != "" {
				commented, err := strconv.ParseBool(tag)
				if err == nil && commented {
					continue
				}
			}
		}
		if structs.IsStruct(f.Value()) {
			rf := asEnvVariables(f.Value(), prefix+delim+f.Name(), skipCommented)
			for k, v := range rf {
				r[k] = v
			}
		} else {
			r[prefix+"_"+strings.ToUpper(f.Name())] = fmt.Sprintf("%v", f.Value())
		}
	}
	return r
}
