package updater

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// argCount is the number of positional arguments of the helper contract:
// <updateeFilePath> <packageContentDirPath> <restart> <routedArgsBase64>
// <additionalExecutablesBase64>.
const argCount = 5

// restartArgSep separates routed restart arguments inside the base64 payload.
// NUL can never appear in an exec argument, so the round trip is exact for
// arguments containing quotes, spaces or separators.
const restartArgSep = "\x00"

// additionalExeSep separates additional executable paths inside the base64
// payload.
const additionalExeSep = ";"

// Args is the message passed from the host process to the detached helper.
// It is the only channel between the two processes: once the helper has been
// started the host is expected to exit.
type Args struct {
	// UpdateeFile is the absolute path of the host executable whose
	// installation directory will be overwritten.
	UpdateeFile string
	// ContentDir is the staged content directory to copy over the
	// installation.
	ContentDir string
	// Restart requests relaunching the application after the copy.
	Restart bool
	// RestartArgs is forwarded unchanged to the relaunched application.
	RestartArgs []string
	// AdditionalExecutables are absolute paths of further executables the
	// helper must wait on before copying.
	AdditionalExecutables []string
}

// Encode renders the five positional arguments. Free-form fields travel
// base64 encoded so shell quoting can never corrupt them.
func (a Args) Encode() []string {
	routed := base64.StdEncoding.EncodeToString([]byte(strings.Join(a.RestartArgs, restartArgSep)))
	additional := base64.StdEncoding.EncodeToString([]byte(strings.Join(a.AdditionalExecutables, additionalExeSep)))

	return []string{
		a.UpdateeFile,
		a.ContentDir,
		strconv.FormatBool(a.Restart),
		routed,
		additional,
	}
}

// ParseArgs decodes the positional arguments produced by Encode.
func ParseArgs(argv []string) (Args, error) {
	if len(argv) != argCount {
		return Args{}, fmt.Errorf("expected %d arguments, got %d", argCount, len(argv))
	}

	restart, err := strconv.ParseBool(argv[2])
	if err != nil {
		return Args{}, fmt.Errorf("invalid restart flag %q: %w", argv[2], err)
	}

	routed, err := base64.StdEncoding.DecodeString(argv[3])
	if err != nil {
		return Args{}, fmt.Errorf("invalid routed arguments payload: %w", err)
	}

	additional, err := base64.StdEncoding.DecodeString(argv[4])
	if err != nil {
		return Args{}, fmt.Errorf("invalid additional executables payload: %w", err)
	}

	return Args{
		UpdateeFile:           argv[0],
		ContentDir:            argv[1],
		Restart:               restart,
		RestartArgs:           splitNonEmpty(string(routed), restartArgSep),
		AdditionalExecutables: splitNonEmpty(string(additional), additionalExeSep),
	}, nil
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
