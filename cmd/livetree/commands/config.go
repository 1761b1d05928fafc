package commands

import (
	"flag"
	"fmt"

	"github.com/livefir/livetree"
	"github.com/tliron/commonlog"
)

// common holds the flags every command shares.
type common struct {
	config  string
	journal string
	verbose int
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "runtime config file (.yaml, .yml or .toml)")
	fs.StringVar(&c.journal, "journal", "", "SQLite journal file")
	fs.IntVar(&c.verbose, "v", -1, "log verbosity, overrides the config file")
}

// load reads the runtime config and configures logging from it.
func (c *common) load() (*livetree.Config, error) {
	config := livetree.DefaultConfig()
	if c.config != "" {
		var err error
		if config, err = livetree.LoadConfig(c.config); err != nil {
			return nil, err
		}
	}
	verbosity := config.LogVerbosity
	if c.verbose >= 0 {
		verbosity = c.verbose
	}
	commonlog.Configure(verbosity, nil)
	return config, nil
}

func (c *common) requireJournal(command string) error {
	if c.journal == "" {
		return fmt.Errorf("%s requires --journal", command)
	}
	return nil
}
