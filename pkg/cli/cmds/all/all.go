// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/sercom.go/pkg/cli/cmds/serial"
	_ "github.com/robotalks/sercom.go/pkg/cli/cmds/spi"
)
