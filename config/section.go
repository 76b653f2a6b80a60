// Package config parses the INI-style configuration file described in
// SPEC_FULL.md §4.4: named sections, a reserved "defaults" section,
// include= splicing, %-token substitution, and defaults inheritance with
// explicit-set tracking for numeric fields. Grounded on
// original_source/continual-sync.c's parse_config/validate_config_section/
// expand_config_sequences and original_source/sync.h's sync_set_s.
package config

import "time"

// DefaultsSectionName is the reserved section every other section inherits
// unset fields from. It may not itself set Source/Destination.
const DefaultsSectionName = "defaults"

// Section mirrors original_source/sync.h's sync_set_s, restated in Go
// types: durations instead of raw integer seconds, and an explicit Set
// struct instead of a bitfield, recording which numeric fields this section
// set itself (as opposed to having inherited them from defaults).
type Section struct {
	Name        string
	Source      string
	Destination string
	Excludes    []string

	SourceValidation      string
	DestinationValidation string

	FullInterval    time.Duration
	FullRetry       time.Duration
	PartialInterval time.Duration
	PartialRetry    time.Duration
	RecursionDepth  int

	FullMarker       string
	PartialMarker    string
	ChangeQueue      string
	TransferList     string
	TempDir          string
	SyncLock         string
	FullRsyncOpts    string
	PartialRsyncOpts string
	LogFile          string
	StatusFile       string

	// Set records which fields this section explicitly set itself, so
	// ApplyDefaults can tell "explicitly zero" from "inherit" (ported from
	// sync_set_s's "set" bitfield).
	Set struct {
		FullInterval    bool
		FullRetry       bool
		PartialInterval bool
		PartialRetry    bool
		RecursionDepth  bool
	}
}

// stringFields lists every string field that expandAll runs through %-token
// substitution, both rsync option strings included. "none"-normalisation
// afterwards covers only blankIfNoneFields, which leaves those two out.
func (s *Section) stringFields() []*string {
	return []*string{
		&s.SourceValidation, &s.DestinationValidation,
		&s.FullMarker, &s.PartialMarker,
		&s.ChangeQueue, &s.TransferList, &s.TempDir, &s.SyncLock,
		&s.FullRsyncOpts, &s.PartialRsyncOpts,
		&s.LogFile, &s.StatusFile,
	}
}

// blankIfNoneFields lists the fields normalised from the literal string
// "none" to "" (unset) — every field in stringFields() except the two
// rsync option strings, DESIGN.md Open Question (d).
func (s *Section) blankIfNoneFields() []*string {
	return []*string{
		&s.SourceValidation, &s.DestinationValidation,
		&s.FullMarker, &s.PartialMarker,
		&s.ChangeQueue, &s.TransferList, &s.TempDir, &s.SyncLock,
		&s.LogFile, &s.StatusFile,
	}
}

// ApplyDefaults fills every unset field of s from defaults. String fields
// inherit only when empty; numeric fields inherit only when Set.* is
// false for that field; Excludes inherits wholesale only when s has none.
func (s *Section) ApplyDefaults(defaults *Section) {
	if defaults == nil {
		return
	}
	if s.SourceValidation == "" {
		s.SourceValidation = defaults.SourceValidation
	}
	if s.DestinationValidation == "" {
		s.DestinationValidation = defaults.DestinationValidation
	}
	if s.FullMarker == "" {
		s.FullMarker = defaults.FullMarker
	}
	if s.PartialMarker == "" {
		s.PartialMarker = defaults.PartialMarker
	}
	if s.ChangeQueue == "" {
		s.ChangeQueue = defaults.ChangeQueue
	}
	if s.TransferList == "" {
		s.TransferList = defaults.TransferList
	}
	if s.TempDir == "" {
		s.TempDir = defaults.TempDir
	}
	if s.SyncLock == "" {
		s.SyncLock = defaults.SyncLock
	}
	if s.FullRsyncOpts == "" {
		s.FullRsyncOpts = defaults.FullRsyncOpts
	}
	if s.PartialRsyncOpts == "" {
		s.PartialRsyncOpts = defaults.PartialRsyncOpts
	}
	if s.LogFile == "" {
		s.LogFile = defaults.LogFile
	}
	if s.StatusFile == "" {
		s.StatusFile = defaults.StatusFile
	}

	if !s.Set.FullInterval {
		s.FullInterval = defaults.FullInterval
	}
	if !s.Set.FullRetry {
		s.FullRetry = defaults.FullRetry
	}
	if !s.Set.PartialInterval {
		s.PartialInterval = defaults.PartialInterval
	}
	if !s.Set.PartialRetry {
		s.PartialRetry = defaults.PartialRetry
	}
	if !s.Set.RecursionDepth {
		s.RecursionDepth = defaults.RecursionDepth
	}

	if len(s.Excludes) == 0 {
		s.Excludes = defaults.Excludes
	}
}

// normalizeNone replaces every blankIfNoneFields() value that is literally
// "none" with "" (spec.md §9 Open Question (d): the two rsync option
// strings are exempt).
func (s *Section) normalizeNone() {
	for _, f := range s.blankIfNoneFields() {
		if *f == "none" {
			*f = ""
		}
	}
}
