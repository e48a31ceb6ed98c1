package audio

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Format describes a container/codec pair and how ffmpeg produces it.
type Format struct {
	Name      string
	MIME      string // declared media type; empty for the platform default
	Ext       string
	Muxer     string
	Encoder   string
	MuxerArgs []string
}

// BaseMIME is the media type without codec parameters, falling back to the
// container's conventional type when none was declared.
func (f Format) BaseMIME() string {
	if f.MIME == "" {
		if f.Ext == "wav" {
			return "audio/wav"
		}
		return "application/octet-stream"
	}
	base, _, _ := strings.Cut(f.MIME, ";")
	return strings.TrimSpace(base)
}

// FileName returns a name whose suffix lets a provider infer the codec.
func (f Format) FileName(stem string) string {
	return stem + "." + f.Ext
}

var formats = map[string]Format{
	"opus-webm": {Name: "opus-webm", MIME: "audio/webm;codecs=opus", Ext: "webm", Muxer: "webm", Encoder: "libopus"},
	"webm":      {Name: "webm", MIME: "audio/webm", Ext: "webm", Muxer: "webm", Encoder: "libvorbis"},
	"mp4": {Name: "mp4", MIME: "audio/mp4", Ext: "mp4", Muxer: "mp4", Encoder: "aac",
		MuxerArgs: []string{"-movflags", "frag_keyframe+empty_moov"}},
	"mpeg":     {Name: "mpeg", MIME: "audio/mpeg", Ext: "mp3", Muxer: "mp3", Encoder: "libmp3lame"},
	"wav":      {Name: "wav", MIME: "audio/wav", Ext: "wav", Muxer: "wav", Encoder: "pcm_s16le"},
	"opus-ogg": {Name: "opus-ogg", MIME: "audio/ogg;codecs=opus", Ext: "ogg", Muxer: "ogg", Encoder: "libopus"},
	"ogg":      {Name: "ogg", MIME: "audio/ogg", Ext: "ogg", Muxer: "ogg", Encoder: "libvorbis"},
}

// PlatformDefault is used when no preferred format is supported. PCM WAV is
// built into every ffmpeg, so it does not declare a media type of its own.
var PlatformDefault = Format{Name: "default", Ext: "wav", Muxer: "wav", Encoder: "pcm_s16le"}

// LookupFormat returns the known format with the given preference name.
func LookupFormat(name string) (Format, bool) {
	f, ok := formats[name]
	return f, ok
}

// Prober reports whether the platform can produce a format.
type Prober interface {
	Supports(ctx context.Context, f Format) bool
}

// Negotiate returns the first supported format from prefs. ok is false when it
// fell back to PlatformDefault.
func Negotiate(ctx context.Context, p Prober, prefs []string) (Format, bool) {
	for _, name := range prefs {
		f, known := formats[name]
		if !known {
			continue
		}
		if p.Supports(ctx, f) {
			return f, true
		}
	}
	return PlatformDefault, false
}

// FFmpegProber checks the muxers and encoders compiled into the local ffmpeg.
// A completed listing is cached; a probe cut short by its context is retried
// by the next caller.
type FFmpegProber struct {
	Path string

	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
	mu       sync.Mutex
	loaded   bool
	muxers   map[string]bool
	encoders map[string]bool
	err      error
}

func NewFFmpegProber(path string) *FFmpegProber {
	return &FFmpegProber{Path: path, command: exec.CommandContext}
}

func (p *FFmpegProber) Supports(ctx context.Context, f Format) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		p.load(ctx)
	}
	if p.err != nil {
		return false
	}
	return p.muxers[f.Muxer] && p.encoders[f.Encoder]
}

// Err returns the probe failure, if any.
func (p *FFmpegProber) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *FFmpegProber) load(ctx context.Context) {
	muxers, err := p.list(ctx, "-muxers")
	if err == nil {
		var encoders map[string]bool
		if encoders, err = p.list(ctx, "-encoders"); err == nil {
			p.muxers, p.encoders = muxers, encoders
		}
	}
	p.err = err
	p.loaded = err == nil || ctx.Err() == nil
}

func (p *FFmpegProber) list(ctx context.Context, flag string) (map[string]bool, error) {
	out, err := p.command(ctx, p.Path, "-hide_banner", flag).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return parseListing(out), nil
}

// parseListing reads the table printed by `ffmpeg -muxers` / `-encoders`: a
// legend, a dashed separator, then "<flags> <name[,name]> <description>" rows.
func parseListing(out []byte) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inTable {
			if strings.HasPrefix(line, "--") || strings.HasPrefix(line, "-------") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}
