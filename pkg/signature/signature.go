package signature

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects how a signature pattern is matched against a log entry.
type Kind string

const (
	KindExact           Kind = "exact"
	KindCaseInsensitive Kind = "case_insensitive"
	KindRegex           Kind = "regex"
)

// Signature is a single threat signature. Signatures are loaded once at
// startup and never mutated afterwards.
type Signature struct {
	ID          string `json:"id" yaml:"id"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Kind        Kind   `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// Store holds the compiled signature set plus the configured error-code
// substrings. It is immutable and safe for concurrent readers.
type Store struct {
	exact      []string
	upper      []string
	regexes    []*regexp.Regexp
	errorCodes []string
}

// New compiles a signature list into a store. Unknown kinds, empty patterns
// and non-compiling regexes are rejected here so that matching never fails
// at evaluation time.
func New(sigs []Signature, errorCodes []string) (*Store, error) {
	s := &Store{}
	for _, sig := range sigs {
		if sig.Pattern == "" {
			return nil, fmt.Errorf("signature %q: empty pattern", sig.ID)
		}
		switch sig.Kind {
		case KindExact:
			s.exact = append(s.exact, sig.Pattern)
		case KindCaseInsensitive:
			s.upper = append(s.upper, strings.ToUpper(sig.Pattern))
		case KindRegex:
			re, err := regexp.Compile(sig.Pattern)
			if err != nil {
				return nil, fmt.Errorf("signature %q: invalid regex: %w", sig.ID, err)
			}
			s.regexes = append(s.regexes, re)
		default:
			return nil, fmt.Errorf("signature %q: unknown type %q", sig.ID, sig.Kind)
		}
	}
	for _, code := range errorCodes {
		if code == "" {
			continue
		}
		s.errorCodes = append(s.errorCodes, strings.ToUpper(code))
	}
	return s, nil
}

// MatchExact reports whether the entry contains any exact pattern.
func (s *Store) MatchExact(entry string) bool {
	for _, p := range s.exact {
		if strings.Contains(entry, p) {
			return true
		}
	}
	return false
}

// MatchCaseInsensitive reports whether the uppercased entry contains any
// case-insensitive pattern.
func (s *Store) MatchCaseInsensitive(upperEntry string) bool {
	for _, p := range s.upper {
		if strings.Contains(upperEntry, p) {
			return true
		}
	}
	return false
}

// MatchRegex reports whether any regex signature matches the entry.
func (s *Store) MatchRegex(entry string) bool {
	for _, re := range s.regexes {
		if re.MatchString(entry) {
			return true
		}
	}
	return false
}

// MatchErrorCode reports whether the uppercased entry contains a configured
// error-code substring.
func (s *Store) MatchErrorCode(upperEntry string) bool {
	for _, code := range s.errorCodes {
		if strings.Contains(upperEntry, code) {
			return true
		}
	}
	return false
}

// file is the on-disk shape of a signature file.
type file struct {
	Signatures []Signature `yaml:"signatures"`
	ErrorCodes []string    `yaml:"error_codes"`
}

// Load reads and compiles a signature file. Any parse or compile failure is
// returned to the caller and is fatal at startup.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature file %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse signature file %s: %w", path, err)
	}
	codes := f.ErrorCodes
	if codes == nil {
		codes = DefaultErrorCodes()
	}
	return New(f.Signatures, codes)
}
