package main

import "github.com/alecthomas/kong"

// Cli is the command line grammar.
type Cli struct {
	Globals

	Version kong.VersionFlag `kong:"name=version,help='Print version and exit.'"`

	Ls     LsCmd     `kong:"cmd,help='List a directory or archive.'"`
	Cat    CatCmd    `kong:"cmd,help='Write a file to stdout.'"`
	Stat   StatCmd   `kong:"cmd,help='Show the size of a file.'"`
	Verify VerifyCmd `kong:"cmd,help='Read every file of one or more archives.'"`
	Cache  CacheCmd  `kong:"cmd,help='Inspect or edit the metadata cache.'"`
}

// Globals are the flags shared by every command.
type Globals struct {
	CachePath string `kong:"name=cache,env=OCPARC_CACHE,default=${cache_path},help='Metadata cache file. Empty disables persistence.'"`
	Charset   string `kong:"name=charset,help='Decode legacy archive names with this charset. (eg. Shift_JIS)'"`
	LogLevel  string `kong:"name=log-level,env=LOG_LEVEL,default=warn,help='Set log level.'"`
	LogJSON   bool   `kong:"name=log-json,env=LOG_JSON,default=false,help='Enable JSON logging output.'"`
}
