package config

import (
	"fmt"

	"github.com/atlanticdynamic/luagate/internal/fancy"
)

// String returns a pretty-printed tree representation of the config
func (c *Config) String() string {
	return ConfigTree(c)
}

// ConfigTree converts a Config struct into a rendered tree string
func ConfigTree(cfg *Config) string {
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(fmt.Sprintf("Luagate Config (%s)", cfg.Version)))

	loggingTree := fancy.BranchNode("Logging", "")
	loggingTree.Child(fmt.Sprintf("Format: %s", orDefault(cfg.Logging.Format, "text")))
	loggingTree.Child(fmt.Sprintf("Level: %s", orDefault(cfg.Logging.Level, "info")))
	loggingTree.Child(fmt.Sprintf("Output: %s", orDefault(cfg.Logging.Output, "stderr")))
	t.Child(loggingTree)

	js := cfg.JobSubmit
	jsTree := fancy.BranchNode("Job Submit", "")
	jsTree.Child("Script: " + fancy.PathText(js.Script))
	jsTree.Child(fmt.Sprintf("Reload Interval: %s", js.ReloadInterval))

	partsTree := fancy.BranchNode("Partitions", fmt.Sprintf("(%d)", len(js.Partitions)))
	for _, p := range js.Partitions {
		if p == nil {
			continue
		}
		label := fancy.ComponentStyle.Render(p.Name)
		if p.Default {
			label += " " + fancy.InfoStyle.Render("(default)")
		}
		partsTree.Child(label)
	}
	jsTree.Child(partsTree)
	t.Child(jsTree)

	return t.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
