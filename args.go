package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"
)

// Args are command line arguments.
type Args struct {
	Host       string
	Port       string
	ConfigFile string
}

func getArgs() (Args, error) {
	configFile := pflag.String("conf", "", "Optional configuration file.")

	pflag.Parse()

	if pflag.NArg() != 2 {
		pflag.PrintDefaults()
		return Args{}, fmt.Errorf("usage: tinbox [--conf file] <host> <port>")
	}

	args := Args{
		Host: pflag.Arg(0),
		Port: pflag.Arg(1),
	}

	if _, err := strconv.ParseUint(args.Port, 10, 16); err != nil {
		return Args{}, fmt.Errorf("invalid port: %s", args.Port)
	}

	if *configFile != "" {
		configPath, err := filepath.Abs(*configFile)
		if err != nil {
			return Args{}, fmt.Errorf(
				"unable to determine absolute path to config file: %s: %s",
				*configFile, err)
		}
		args.ConfigFile = configPath
	}

	return args, nil
}
