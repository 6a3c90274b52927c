package device

import (
	"os/exec"
	"strconv"
)

// Capture commands in detection order. Each writes raw S16LE mono PCM to stdout.
var captureCommands = []string{"arecord", "rec", "pw-record"}

// Playback commands in detection order.
var playbackCommands = []string{"ffplay", "mpv", "afplay", "paplay", "aplay"}

// isCommandAvailable checks if a command is available
func isCommandAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// detectCommand returns preferred when set, otherwise the first available candidate
func detectCommand(preferred string, candidates []string) string {
	if preferred != "" {
		return preferred
	}
	for _, c := range candidates {
		if isCommandAvailable(c) {
			return c
		}
	}
	return ""
}

func captureArgs(name string, rate int) []string {
	r := strconv.Itoa(rate)
	switch name {
	case "arecord":
		return []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", r, "-"}
	case "rec":
		return []string{"-q", "-b", "16", "-e", "signed-integer", "-c", "1", "-r", r, "-t", "raw", "-"}
	case "pw-record":
		return []string{"--format", "s16", "--channels", "1", "--rate", r, "-"}
	}
	return nil
}

func playbackArgs(name, path string) []string {
	switch name {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}
	case "mpv":
		return []string{"--no-video", "--really-quiet", path}
	case "aplay":
		return []string{"-q", path}
	}
	return []string{path}
}
