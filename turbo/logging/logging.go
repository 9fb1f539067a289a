// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package logging

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogJsonFlag             = "log.json"
	LogConsoleJsonFlag      = "log.console.json"
	LogDirJsonFlag          = "log.dir.json"
	LogVerbosityFlag        = "verbosity"
	LogConsoleVerbosityFlag = "log.console.verbosity"
	LogDirPathFlag          = "log.dir.path"
	LogDirVerbosityFlag     = "log.dir.verbosity"
)

// RegisterFlags adds the logging flags to cmd and every subcommand.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.Bool(LogJsonFlag, false, "Format console logs with JSON")
	flags.Bool(LogConsoleJsonFlag, false, "Format console logs with JSON")
	flags.Bool(LogDirJsonFlag, false, "Format file logs with JSON")
	flags.String(LogVerbosityFlag, log.LvlInfo.String(), "Set the log level for console logs")
	flags.String(LogConsoleVerbosityFlag, log.LvlInfo.String(), "Set the log level for console logs")
	flags.String(LogDirPathFlag, "", "Path to store user and error logs to disk")
	flags.String(LogDirVerbosityFlag, log.LvlInfo.String(), "Set the log verbosity for logs stored to disk")
}

// SetupLoggerCmd configures the root logger from the flags of cmd. Without --log.dir.path
// the log directory defaults to <datadir>/logs when --datadir is set.
func SetupLoggerCmd(filePrefix string, cmd *cobra.Command) log.Logger {
	flags := cmd.Flags()
	logJsonVal, _ := flags.GetBool(LogJsonFlag)
	logConsoleJsonVal, _ := flags.GetBool(LogConsoleJsonFlag)
	consoleJson := logJsonVal || logConsoleJsonVal
	dirJson, _ := flags.GetBool(LogDirJsonFlag)

	consoleLevel := log.LvlInfo
	if f := flags.Lookup(LogConsoleVerbosityFlag); f != nil && f.Changed {
		consoleLevel = levelOr(f, log.LvlInfo)
	} else if f := flags.Lookup(LogVerbosityFlag); f != nil {
		consoleLevel = levelOr(f, log.LvlInfo)
	}
	dirLevel := levelOr(flags.Lookup(LogDirVerbosityFlag), log.LvlInfo)

	dirPath := ""
	if f := flags.Lookup(LogDirPathFlag); f != nil {
		dirPath = f.Value.String()
	}
	if dirPath == "" {
		if f := flags.Lookup("datadir"); f != nil && f.Value.String() != "" {
			dirPath = filepath.Join(f.Value.String(), "logs")
		}
	}
	initSeparatedLogging(filePrefix, dirPath, consoleLevel, dirLevel, consoleJson, dirJson)
	return log.Root()
}

func levelOr(f *pflag.Flag, def log.Lvl) log.Lvl {
	if f == nil {
		return def
	}
	lvl, err := tryGetLogLevel(f.Value.String())
	if err != nil {
		return def
	}
	return lvl
}

func initSeparatedLogging(
	filePrefix string,
	dirPath string,
	consoleLevel log.Lvl,
	dirLevel log.Lvl,
	consoleJson bool,
	dirJson bool) {

	logger := log.Root()

	if consoleJson {
		log.Root().SetHandler(log.LvlFilterHandler(consoleLevel, log.StreamHandler(os.Stderr, log.JsonFormat())))
	} else {
		log.Root().SetHandler(log.LvlFilterHandler(consoleLevel, log.StderrHandler))
	}

	if len(dirPath) == 0 {
		logger.Warn("no log dir set, console logging only")
		return
	}

	err := os.MkdirAll(dirPath, 0764)
	if err != nil {
		logger.Warn("failed to create log dir, console logging only")
		return
	}

	dirFormat := log.TerminalFormatNoColor()
	if dirJson {
		dirFormat = log.JsonFormat()
	}

	lumberjack := &lumberjack.Logger{
		Filename:   filepath.Join(dirPath, filePrefix+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}
	userLog := log.StreamHandler(lumberjack, dirFormat)

	mux := log.MultiHandler(logger.GetHandler(), log.LvlFilterHandler(dirLevel, userLog))
	log.Root().SetHandler(mux)
	logger.Info("logging to file system", "log dir", dirPath, "file prefix", filePrefix, "log level", dirLevel, "json", dirJson)
}

// tryGetLogLevel accepts level names ("info", "dbug") and their numeric values.
func tryGetLogLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
