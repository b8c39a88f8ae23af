package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// SplitCommand splits a command string into arguments without a shell.
func SplitCommand(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid command syntax: %w", err)
	}
	return args, nil
}

// reservedFlags are set by the converter itself; letting FF_BIN carry them
// would change the meaning of every invocation.
var reservedFlags = map[string]bool{
	"-i":     true,
	"-f":     true,
	"-y":     true,
	"-n":     true,
	"-safe":  true,
	"-c":     true,
	"-c:v":   true,
	"-c:a":   true,
	"-codec": true,
}

// SanitizeAndValidateArgs checks the leading arguments configured via
// FF_BIN. exec.Command never runs a shell, but shell metacharacters in a
// config value are still almost certainly a mistake.
func SanitizeAndValidateArgs(args []string) error {
	for _, arg := range args {
		if reservedFlags[arg] {
			return fmt.Errorf("argument %s is managed by the converter", arg)
		}
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}
