package ptysession

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// TermSize is the controlling terminal's character-cell dimensions, used to
// size the first pty a Session opens for a job (spec.md §4.2).
type TermSize struct {
	Cols int
	Rows int
}

// DetectTermSize returns the current controlling terminal's dimensions. It
// tries a TIOCGWINSZ ioctl on stdout, then stderr (in case stdout is
// redirected), then the COLUMNS/LINES environment variables, and finally
// falls back to 80x24.
func DetectTermSize() TermSize {
	for _, fd := range []uintptr{os.Stdout.Fd(), os.Stderr.Fd()} {
		if s := termSizeFromIoctl(fd); s.Cols > 0 && s.Rows > 0 {
			return s
		}
	}
	return termSizeFromEnv()
}

func termSizeFromIoctl(fd uintptr) TermSize {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return TermSize{}
	}
	return TermSize{Cols: int(ws.Col), Rows: int(ws.Row)}
}

func termSizeFromEnv() TermSize {
	return TermSize{Cols: envInt("COLUMNS", 80), Rows: envInt("LINES", 24)}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
