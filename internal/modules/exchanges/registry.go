package exchanges

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/marketcal/internal/modules/market_hours"
	"github.com/aristath/marketcal/internal/modules/market_hours/ics"
)

// Exchange is a loaded calendar.
type Exchange struct {
	Code       string
	Name       string
	Aliases    []string
	Definition market_hours.CalendarDefinition
	Location   *time.Location
}

// UnknownExchangeError is returned for a code or alias no calendar answers to.
type UnknownExchangeError struct {
	Code string
}

func (e *UnknownExchangeError) Error() string {
	return fmt.Sprintf("exchange not found: %s", e.Code)
}

// Registry holds exchange calendars by code. Lookups accept the code or any
// alias, case-insensitively.
type Registry struct {
	mu        sync.RWMutex
	exchanges map[string]*Exchange
	aliases   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exchanges: make(map[string]*Exchange),
		aliases:   make(map[string]string),
	}
}

// LoadFS loads every definitions file in fsys matching pattern, in lexical
// order. ICS files named by a calendar are resolved relative to its file.
func (r *Registry) LoadFS(fsys fs.FS, pattern string) error {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.loadFile(fsys, name); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads a definitions file from disk. Calendars whose code is
// already registered are replaced.
func (r *Registry) LoadFile(filename string) error {
	return r.loadFile(os.DirFS(filepath.Dir(filename)), filepath.Base(filename))
}

func (r *Registry) loadFile(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read calendars %s: %w", name, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse calendars %s: %w", name, err)
	}

	dir := path.Dir(name)
	for _, spec := range file.Calendars {
		var extra []market_hours.Date
		if spec.AdHocHolidaysICS != "" {
			if extra, err = readICS(fsys, path.Join(dir, spec.AdHocHolidaysICS)); err != nil {
				return fmt.Errorf("%s: calendar %s: %w", name, spec.Code, err)
			}
		}
		if err := r.Register(spec, extra); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func readICS(fsys fs.FS, name string) ([]market_hours.Date, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	dates, err := ics.ParseHolidays(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return dates, nil
}

// Register validates spec and adds it, replacing any calendar with the same
// code. extraHolidays are added to the ad-hoc holidays.
func (r *Registry) Register(spec CalendarSpec, extraHolidays []market_hours.Date) error {
	def, err := spec.Definition(extraHolidays)
	if err != nil {
		return fmt.Errorf("calendar %s: %w", spec.Code, err)
	}
	loc, err := def.Location()
	if err != nil {
		return fmt.Errorf("calendar %s: %w", spec.Code, err)
	}

	code := strings.ToUpper(spec.Code)
	def.Name = code
	ex := &Exchange{
		Code:       code,
		Name:       spec.Name,
		Aliases:    spec.Aliases,
		Definition: def,
		Location:   loc,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges[code] = ex
	r.aliases[code] = code
	for _, alias := range spec.Aliases {
		r.aliases[normalize(alias)] = code
	}
	return nil
}

// Get returns the exchange for a code or alias.
func (r *Registry) Get(codeOrAlias string) (*Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if code, ok := r.aliases[normalize(codeOrAlias)]; ok {
		if ex, ok := r.exchanges[code]; ok {
			return ex, nil
		}
	}
	return nil, &UnknownExchangeError{Code: codeOrAlias}
}

// Codes returns the registered exchange codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.exchanges))
	for code := range r.exchanges {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Exchanges returns the registered exchanges sorted by code.
func (r *Registry) Exchanges() []*Exchange {
	codes := r.Codes()
	out := make([]*Exchange, 0, len(codes))
	for _, code := range codes {
		if ex, err := r.Get(code); err == nil {
			out = append(out, ex)
		}
	}
	return out
}

// Len returns the number of registered exchanges.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exchanges)
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
