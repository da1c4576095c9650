package corrections

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"setlist/internal/fileutil"
	"setlist/internal/logging"
	"setlist/internal/services"
	"setlist/internal/textutil"
)

// Lookup rewrites a recognized pair. Implementations return the input
// unchanged when no rule applies.
type Lookup interface {
	Lookup(artist, title string) (string, string)
}

// Rule is one learned correction.
type Rule struct {
	Artist         string    `json:"artist"`
	Title          string    `json:"title"`
	OriginalArtist string    `json:"original_artist"`
	OriginalTitle  string    `json:"original_title"`
	CorrectedAt    time.Time `json:"corrected_at"`
}

// Key returns the normalized key of the misheard pair.
func (r Rule) Key() string {
	return textutil.PairKey(r.OriginalArtist, r.OriginalTitle)
}

type fileFormat struct {
	Corrections map[string]Rule `json:"corrections"`
}

// Store is a JSON-file backed correction table. It is safe for concurrent
// use. The file is read on first access and rewritten atomically on every
// change.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	loaded bool
	rules  map[string]Rule
}

// NewStore returns a store backed by path. Nothing is read until the first
// lookup or edit.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "corrections"),
		now:    time.Now,
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the corrected pair for artist and title, or the inputs when
// no rule matches.
func (s *Store) Lookup(artist, title string) (string, string) {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[textutil.PairKey(artist, title)]
	if !ok {
		return artist, title
	}
	return rule.Artist, rule.Title
}

// Add records a correction from the misheard pair to the corrected pair,
// replacing any rule with the same key.
func (s *Store) Add(originalArtist, originalTitle, artist, title string) (Rule, error) {
	rule := Rule{
		Artist:         textutil.CollapseSpace(artist),
		Title:          textutil.CollapseSpace(title),
		OriginalArtist: textutil.CollapseSpace(originalArtist),
		OriginalTitle:  textutil.CollapseSpace(originalTitle),
	}
	if rule.OriginalArtist == "" && rule.OriginalTitle == "" {
		return Rule{}, services.Wrap(services.ErrValidation, "corrections", "add", "misheard artist and title are empty", nil)
	}
	if rule.Artist == "" || rule.Title == "" {
		return Rule{}, services.Wrap(services.ErrValidation, "corrections", "add", "corrected artist and title are required", nil)
	}
	if rule.Artist == rule.OriginalArtist && rule.Title == rule.OriginalTitle {
		return Rule{}, services.Wrap(services.ErrValidation, "corrections", "add", "correction does not change anything", nil)
	}
	rule.CorrectedAt = s.now().UTC()

	s.ensureLoaded()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[rule.Key()] = rule
	if err := s.save(); err != nil {
		return Rule{}, err
	}
	s.logger.Debug("stored correction",
		logging.String("from", rule.OriginalArtist+" - "+rule.OriginalTitle),
		logging.String("to", rule.Artist+" - "+rule.Title))
	return rule, nil
}

// Remove deletes the rule for the misheard pair.
func (s *Store) Remove(originalArtist, originalTitle string) error {
	s.ensureLoaded()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := textutil.PairKey(originalArtist, originalTitle)
	if _, ok := s.rules[key]; !ok {
		return services.Wrap(services.ErrNotFound, "corrections", "remove",
			fmt.Sprintf("no correction for %q - %q", originalArtist, originalTitle), nil)
	}
	delete(s.rules, key)
	return s.save()
}

// List returns all rules, newest first.
func (s *Store) List() []Rule {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CorrectedAt.Equal(rules[j].CorrectedAt) {
			return rules[i].CorrectedAt.After(rules[j].CorrectedAt)
		}
		return rules[i].Key() < rules[j].Key()
	})
	return rules
}

// Count returns the number of rules.
func (s *Store) Count() int {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

func (s *Store) ensureLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.loaded = true
	s.rules = make(map[string]Rule)
	if s.path == "" {
		return
	}
	if err := s.load(); err != nil {
		s.rules = make(map[string]Rule)
		logging.WarnWithContext(s.logger, "failed to load corrections", "corrections_load_failed",
			logging.Error(err),
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "fix or delete the corrections file"),
			logging.String(logging.FieldImpact, "learned corrections are not applied this run"))
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read corrections file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse corrections file: %w", err)
	}
	for key, rule := range file.Corrections {
		// Keys written by other tools may use a looser normalization.
		if rule.OriginalArtist != "" || rule.OriginalTitle != "" {
			key = rule.Key()
		} else if artist, title, ok := textutil.SplitPairKey(key); ok {
			rule.OriginalArtist, rule.OriginalTitle = artist, title
			key = rule.Key()
		} else {
			continue
		}
		s.rules[key] = rule
	}
	s.logger.Debug("loaded corrections",
		logging.Int("rule_count", len(s.rules)),
		logging.String("path", s.path))
	return nil
}

func (s *Store) save() error {
	if s.path == "" {
		return services.Wrap(services.ErrConfiguration, "corrections", "save", "no corrections path configured", nil)
	}
	data, err := json.MarshalIndent(fileFormat{Corrections: s.rules}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal corrections: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("persist corrections: %w", err)
	}
	return nil
}

// Nop is the disabled correction table.
type Nop struct{}

// Lookup returns its inputs.
func (Nop) Lookup(artist, title string) (string, string) {
	return artist, title
}
