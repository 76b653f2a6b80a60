package config

import (
	"fmt"
	"strings"
)

// expandTokens implements SPEC_FULL.md §4.4's substitution table, grounded
// on original_source/continual-sync.c's expand_config_sequences. fieldName
// is only used in the returned error, to identify which field failed.
func expandTokens(s *Section, value, fieldName string) (string, error) {
	if value == "" {
		return "", nil
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(value) {
			return "", fmt.Errorf("config: %s: %s: truncated %%-sequence", s.Name, fieldName)
		}
		switch value[i] {
		case '%':
			b.WriteByte('%')
		case 'n':
			b.WriteString(s.Name)
		case 's':
			b.WriteString(s.Source)
		case 'd':
			b.WriteString(destinationPathComponent(s.Destination))
		case 'h':
			b.WriteString(destinationHostComponent(s.Destination))
		default:
			return "", fmt.Errorf("config: %s: %s: invalid variable substitution %%%c", s.Name, fieldName, value[i])
		}
	}
	return b.String(), nil
}

// destinationPathComponent returns the suffix of dest after its last ':',
// or dest unchanged if it has none.
func destinationPathComponent(dest string) string {
	if i := strings.LastIndexByte(dest, ':'); i >= 0 {
		return dest[i+1:]
	}
	return dest
}

// destinationHostComponent returns the prefix of dest before its first
// ':', or "localhost" if dest has none at all (SPEC_FULL.md §9 Open
// Question (b)).
func destinationHostComponent(dest string) string {
	if i := strings.IndexByte(dest, ':'); i >= 0 {
		return dest[:i]
	}
	return "localhost"
}

// expandAll runs expandTokens over every field in stringFields(), in
// place, stopping at the first error.
func (s *Section) expandAll() error {
	names := []string{
		"source_validation", "destination_validation",
		"full_marker", "partial_marker",
		"change_queue", "transfer_list", "tempdir", "sync_lock",
		"full_rsync_opts", "partial_rsync_opts",
		"log_file", "status_file",
	}
	fields := s.stringFields()
	for i, f := range fields {
		expanded, err := expandTokens(s, *f, names[i])
		if err != nil {
			return err
		}
		*f = expanded
	}
	return nil
}
