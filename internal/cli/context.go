package cli

import (
	"io"

	"github.com/MimeLyc/convertctl/pkg/log"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type GlobalOptions struct {
	ConfigPath string
	ServerURL  string
	Lang       string
	JSON       bool
	Quiet      bool
	Verbose    bool
	NoColor    bool
	LogLevel   string
	LogFile    string
}

type AppContext struct {
	Build BuildInfo
	IO    IOStreams
	Opts  GlobalOptions

	logFile *log.FileLogger
}

func (a *AppContext) closeLog() {
	if a.logFile == nil {
		return
	}
	_ = a.logFile.Close()
	a.logFile = nil
}
