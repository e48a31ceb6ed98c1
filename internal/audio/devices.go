package audio

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"
)

// Device is an audio input known to ffmpeg.
type Device struct {
	Index string
	Name  string
}

var (
	avfoundationDeviceRe = regexp.MustCompile(`\]\s+\[(\d+)\]\s+(.+)$`)
	dshowDeviceRe        = regexp.MustCompile(`"([^"]+)"\s+\(audio\)`)
)

// ListDevices asks ffmpeg for the audio inputs of the given input format.
// Formats without a listing mode return no devices.
func (r *Recorder) ListDevices(ctx context.Context, inputFormat string) ([]Device, error) {
	switch inputFormat {
	case "avfoundation", "dshow":
	default:
		return nil, nil
	}

	cmd := r.command(r.FFmpegPath, "-hide_banner", "-f", inputFormat, "-list_devices", "true", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return nil, ctx.Err()
	}
	// ffmpeg exits non-zero after listing, so only the output matters.
	return parseDevices(inputFormat, stderr.Bytes()), nil
}

func parseDevices(inputFormat string, out []byte) []Device {
	var devices []Device
	sc := bufio.NewScanner(bytes.NewReader(out))
	inAudio := inputFormat == "dshow"
	for sc.Scan() {
		line := sc.Text()
		switch inputFormat {
		case "avfoundation":
			if strings.Contains(line, "audio devices:") {
				inAudio = true
				continue
			}
			if strings.Contains(line, "video devices:") {
				inAudio = false
				continue
			}
			if m := avfoundationDeviceRe.FindStringSubmatch(line); inAudio && m != nil {
				devices = append(devices, Device{Index: m[1], Name: strings.TrimSpace(m[2])})
			}
		case "dshow":
			if m := dshowDeviceRe.FindStringSubmatch(line); m != nil {
				devices = append(devices, Device{Index: "audio=" + m[1], Name: m[1]})
			}
		}
	}
	return devices
}
