package application

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"vn.io.arda/rolesync/internal/domain"
	"vn.io.arda/rolesync/internal/metrics"
)

// MatchMode selects how a username is looked up in a usernames file.
type MatchMode string

const (
	// MatchLine matches when a trimmed line equals the username.
	MatchLine MatchMode = "line"
	// MatchSubstring matches when the username occurs anywhere in the file, taken literally.
	MatchSubstring MatchMode = "substring"
)

// ParseMatchMode returns the mode named by s, defaulting to MatchLine.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == MatchSubstring {
		return MatchSubstring
	}
	return MatchLine
}

// MembershipChecker answers whether an identifier is listed in a file.
type MembershipChecker interface {
	IsMember(identifier, filePath string) domain.Membership
}

// Checker reads usernames files from fs. Every call reads the file again.
type Checker struct {
	fs   afero.Fs
	mode MatchMode
}

// NewChecker creates a Checker over the given filesystem.
func NewChecker(fsys afero.Fs, mode MatchMode) *Checker {
	if mode != MatchSubstring {
		mode = MatchLine
	}
	return &Checker{fs: fsys, mode: mode}
}

// IsMember returns MembershipUnknown when the file cannot be checked, and
// MembershipTrue/MembershipFalse once its content was read.
func (c *Checker) IsMember(identifier, filePath string) domain.Membership {
	if strings.TrimSpace(filePath) == "" {
		metrics.MembershipChecks.WithLabelValues(metrics.ResultNoPath).Inc()
		return domain.MembershipUnknown
	}

	info, err := c.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.MembershipChecks.WithLabelValues(metrics.ResultMissing).Inc()
			log.Warn().Str("path", filePath).Msg("usernames file could not be found")
		} else {
			metrics.MembershipChecks.WithLabelValues(metrics.ResultUnreadable).Inc()
			log.Warn().Err(err).Str("path", filePath).Msg("usernames file could not be read")
		}
		return domain.MembershipUnknown
	}
	if info.IsDir() {
		metrics.MembershipChecks.WithLabelValues(metrics.ResultUnreadable).Inc()
		log.Warn().Str("path", filePath).Msg("usernames file is a directory")
		return domain.MembershipUnknown
	}

	content, err := afero.ReadFile(c.fs, filePath)
	if err != nil {
		metrics.MembershipChecks.WithLabelValues(metrics.ResultUnreadable).Inc()
		log.Warn().Err(err).Str("path", filePath).Msg("usernames file could not be read")
		return domain.MembershipUnknown
	}
	if len(content) == 0 {
		log.Warn().Str("path", filePath).Msg("usernames file has empty content")
	}

	if c.matches(identifier, string(content)) {
		metrics.MembershipChecks.WithLabelValues(metrics.ResultTrue).Inc()
		return domain.MembershipTrue
	}
	metrics.MembershipChecks.WithLabelValues(metrics.ResultFalse).Inc()
	return domain.MembershipFalse
}

func (c *Checker) matches(identifier, content string) bool {
	if identifier == "" {
		return false
	}
	if c.mode == MatchSubstring {
		return strings.Contains(content, identifier)
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == identifier {
			return true
		}
	}
	return false
}
