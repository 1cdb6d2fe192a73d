package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"transcode-orchestrator/internal/transcoder"
)

// profileEntry is one named preset in the profiles YAML file.
type profileEntry struct {
	Name           string  `yaml:"name"`
	Mime           string  `yaml:"mime"`
	Width          int32   `yaml:"width"`
	Height         int32   `yaml:"height"`
	Bitrate        int32   `yaml:"bitrate"`
	FrameRate      int32   `yaml:"frame_rate"`
	IFrameInterval int32   `yaml:"i_frame_interval"`
	OperatingRate  float32 `yaml:"operating_rate"`
	Priority       int32   `yaml:"priority"`
}

type profileFile struct {
	Profiles []profileEntry `yaml:"profiles"`
}

// Profiles is a read-only set of named destination-format presets.
type Profiles struct {
	byName map[string]*transcoder.Format
}

// DefaultProfiles returns the built-in presets used when no profiles file is
// configured.
func DefaultProfiles() *Profiles {
	p := &Profiles{byName: make(map[string]*transcoder.Format)}
	for _, e := range []profileEntry{
		{Name: "720p", Mime: "video/avc", Width: 1280, Height: 720, Bitrate: 4_000_000},
		{Name: "480p", Mime: "video/avc", Width: 854, Height: 480, Bitrate: 2_000_000},
	} {
		p.byName[e.Name] = e.toFormat()
	}
	return p
}

// LoadProfiles reads presets from a YAML file.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses presets from YAML data. Every entry must carry a
// unique, non-empty name.
func ParseProfiles(data []byte) (*Profiles, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}

	p := &Profiles{byName: make(map[string]*transcoder.Format, len(f.Profiles))}
	for _, e := range f.Profiles {
		if e.Name == "" {
			return nil, fmt.Errorf("profile with empty name")
		}
		if _, exists := p.byName[e.Name]; exists {
			return nil, fmt.Errorf("duplicate profile %q", e.Name)
		}
		p.byName[e.Name] = e.toFormat()
	}
	return p, nil
}

// Resolve returns a copy of the preset format with the given name.
func (p *Profiles) Resolve(name string) (*transcoder.Format, bool) {
	f, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// Names returns the preset names, in no particular order.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	return names
}

func (e profileEntry) toFormat() *transcoder.Format {
	f := transcoder.NewFormat()
	if e.Mime != "" {
		f.SetString(transcoder.KeyMime, e.Mime)
	}
	if e.Width != 0 {
		f.SetInt32(transcoder.KeyWidth, e.Width)
	}
	if e.Height != 0 {
		f.SetInt32(transcoder.KeyHeight, e.Height)
	}
	if e.Bitrate != 0 {
		f.SetInt32(transcoder.KeyBitRate, e.Bitrate)
	}
	if e.FrameRate != 0 {
		f.SetInt32(transcoder.KeyFrameRate, e.FrameRate)
	}
	if e.IFrameInterval != 0 {
		f.SetInt32(transcoder.KeyIFrameInterval, e.IFrameInterval)
	}
	if e.OperatingRate != 0 {
		f.SetFloat(transcoder.KeyOperatingRate, e.OperatingRate)
	}
	if e.Priority != 0 {
		f.SetInt32(transcoder.KeyPriority, e.Priority)
	}
	return f
}
