package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

const maxIncludeDepth = 3

var skipIncludeSuffixes = []string{"~", ".rpmsave", ".rpmorig", ".rpmnew"}

// Config is every parsed section, with the reserved defaults section
// broken out and every other section already merged against it.
type Config struct {
	Defaults *Section
	Sections []*Section
}

// Load reads path (splicing any include= directives it contains, depth-
// limited to maxIncludeDepth) and returns every section with defaults
// applied, tokens expanded, and "none" normalised.
func Load(path string) (*Config, error) {
	source, err := spliceIncludes(path, 0)
	if err != nil {
		return nil, err
	}

	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, []byte(source))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg := &Config{}
	var rawDefaults *Section

	for _, iniSec := range f.Sections() {
		name := iniSec.Name()
		if name == "" {
			continue // go-ini's own implicit top-of-file section, unused here
		}
		sec, err := sectionFromINI(name, iniSec)
		if err != nil {
			return nil, err
		}
		if name == DefaultsSectionName {
			if sec.Source != "" || sec.Destination != "" {
				return nil, fmt.Errorf("config: %s: defaults section may not set source/destination", path)
			}
			rawDefaults = sec
			cfg.Defaults = sec
			continue
		}
		cfg.Sections = append(cfg.Sections, sec)
	}

	for _, sec := range cfg.Sections {
		sec.ApplyDefaults(rawDefaults)
		if sec.Source == "" {
			return nil, fmt.Errorf("config: %s: no source directory defined", sec.Name)
		}
		if sec.Destination == "" {
			return nil, fmt.Errorf("config: %s: no destination directory defined", sec.Name)
		}
		if err := sec.expandAll(); err != nil {
			return nil, err
		}
		sec.normalizeNone()
	}

	return cfg, nil
}

func sectionFromINI(name string, iniSec *ini.Section) (*Section, error) {
	sec := &Section{Name: name}
	get := func(key string) string { return iniSec.Key(key).String() }

	sec.Source = get("source")
	sec.Destination = get("destination")
	sec.SourceValidation = get("source_validation")
	sec.DestinationValidation = get("destination_validation")
	sec.FullMarker = get("full_marker")
	sec.PartialMarker = get("partial_marker")
	sec.ChangeQueue = get("change_queue")
	sec.TransferList = get("transfer_list")
	sec.TempDir = get("tempdir")
	sec.SyncLock = get("sync_lock")
	sec.FullRsyncOpts = get("full_rsync_opts")
	sec.PartialRsyncOpts = get("partial_rsync_opts")
	sec.LogFile = get("log_file")
	sec.StatusFile = get("status_file")

	if iniSec.HasKey("exclude") {
		sec.Excludes = iniSec.Key("exclude").ValueWithShadows()
	}

	var err error
	if sec.FullInterval, sec.Set.FullInterval, err = durationKey(iniSec, "full_interval"); err != nil {
		return nil, err
	}
	if sec.FullRetry, sec.Set.FullRetry, err = durationKey(iniSec, "full_retry"); err != nil {
		return nil, err
	}
	if sec.PartialInterval, sec.Set.PartialInterval, err = durationKey(iniSec, "partial_interval"); err != nil {
		return nil, err
	}
	if sec.PartialRetry, sec.Set.PartialRetry, err = durationKey(iniSec, "partial_retry"); err != nil {
		return nil, err
	}

	if iniSec.HasKey("recursion_depth") {
		v, err := strconv.Atoi(get("recursion_depth"))
		if err != nil {
			return nil, fmt.Errorf("config: %s: recursion_depth: %w", name, err)
		}
		sec.RecursionDepth = v
		sec.Set.RecursionDepth = true
	}

	return sec, nil
}

// durationKey reads key as a whole number of seconds and converts it to a
// time.Duration; the bool return reports whether the key was present at
// all (feeding Section.Set.*).
func durationKey(iniSec *ini.Section, key string) (time.Duration, bool, error) {
	if !iniSec.HasKey(key) {
		return 0, false, nil
	}
	v, err := strconv.Atoi(iniSec.Key(key).String())
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %s: %w", iniSec.Name(), key, err)
	}
	return time.Duration(v) * time.Second, true, nil
}

// spliceIncludes reads path, textually inlining the target of every
// "include = glob" line (in place, relative to path's own directory) and
// returns the combined INI source. Mirrors original_source/continual-
// sync.c's parse_config's include handling; recursion stops silently past
// maxIncludeDepth (the original does the same, treating it as a
// protective cap rather than an error).
func spliceIncludes(path string, depth int) (string, error) {
	if depth > maxIncludeDepth {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	var out strings.Builder

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		key, val, ok := splitIncludeLine(trimmed)
		if !ok {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		_ = key // always "include"; kept named for readability at the call site

		pattern := val
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", fmt.Errorf("config: %s: include: %w", path, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if skipIncludeMatch(m) {
				continue
			}
			if _, err := os.Stat(m); err != nil {
				continue
			}
			spliced, err := spliceIncludes(m, depth+1)
			if err != nil {
				return "", err
			}
			out.WriteString(spliced)
			out.WriteByte('\n')
		}
	}

	return out.String(), nil
}

// splitIncludeLine recognises a top-level "include = pattern" line (not
// inside a [section] header), the only directive this format special-
// cases outside of normal key=value parsing.
func splitIncludeLine(line string) (key, value string, ok bool) {
	if !strings.HasPrefix(line, "include") {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "include"))
	if !strings.HasPrefix(rest, "=") {
		return "", "", false
	}
	return "include", strings.TrimSpace(strings.TrimPrefix(rest, "=")), true
}

func skipIncludeMatch(path string) bool {
	for _, suffix := range skipIncludeSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
